package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-wayback-appstats/models"
)

// Default patterns for the update date ("Jan 05, 2021") and the app size ("123.4 MB").
const (
	DefaultUpdatedPattern = `(?P<updated_date>[A-Z][a-z]{2}\s\d{1,2},\s\d{4})`
	DefaultSizePattern    = `(?P<app_size>\d+\.\d+\sMB)`
)

// Field names reported by ErrFieldMissing.
const (
	FieldUpdatedDate = "updated_date"
	FieldAppSize     = "app_size"
)

// ErrFieldMissing reports which fields a page did not match.
type ErrFieldMissing struct {
	Fields []string
}

func (e *ErrFieldMissing) Error() string {
	return fmt.Sprintf("missing field(s): %s", strings.Join(e.Fields, ", "))
}

// Extractor pulls the update date and app size out of page text.
type Extractor struct {
	updated *regexp.Regexp
	size    *regexp.Regexp
}

// NewExtractor compiles both patterns. A pattern with a group named after its
// field yields that group; otherwise the whole match is used.
func NewExtractor(updatedPattern, sizePattern string) (*Extractor, error) {
	updated, err := regexp.Compile(updatedPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid updated pattern: %w", err)
	}
	size, err := regexp.Compile(sizePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid size pattern: %w", err)
	}
	return &Extractor{updated: updated, size: size}, nil
}

// DefaultExtractor uses DefaultUpdatedPattern and DefaultSizePattern.
func DefaultExtractor() *Extractor {
	e, err := NewExtractor(DefaultUpdatedPattern, DefaultSizePattern)
	if err != nil {
		panic(err)
	}
	return e
}

// Extract returns the first match of each pattern. If either field is
// absent it returns *ErrFieldMissing naming every absent field.
func (e *Extractor) Extract(content string) (models.Stat, error) {
	updated, okUpdated := firstMatch(e.updated, FieldUpdatedDate, content)
	size, okSize := firstMatch(e.size, FieldAppSize, content)

	if !okUpdated || !okSize {
		missing := &ErrFieldMissing{}
		if !okUpdated {
			missing.Fields = append(missing.Fields, FieldUpdatedDate)
		}
		if !okSize {
			missing.Fields = append(missing.Fields, FieldAppSize)
		}
		return models.Stat{}, missing
	}
	return models.Stat{UpdatedDate: updated, AppSize: size}, nil
}

func firstMatch(re *regexp.Regexp, group, content string) (string, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	if i := re.SubexpIndex(group); i > 0 {
		return m[i], true
	}
	return m[0], true
}
