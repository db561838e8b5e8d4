package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-wayback-appstats/models"
)

// DualWriter sends every app's stats to two writers, e.g. JSON and CSV
// files, or files and a database.
type DualWriter struct {
	primary   StatsWriter
	secondary StatsWriter
}

// NewDualWriter combines two writers; primary is written first.
func NewDualWriter(primary, secondary StatsWriter) *DualWriter {
	return &DualWriter{primary: primary, secondary: secondary}
}

// WriteStats writes to both writers and returns both locations, comma separated.
func (dw *DualWriter) WriteStats(stats *models.AppStats) (string, error) {
	first, err := dw.primary.WriteStats(stats)
	if err != nil {
		return "", fmt.Errorf("primary write failed: %w", err)
	}
	second, err := dw.secondary.WriteStats(stats)
	if err != nil {
		return first, fmt.Errorf("secondary write failed: %w", err)
	}
	return strings.Join([]string{first, second}, ","), nil
}

// Close closes both writers.
func (dw *DualWriter) Close() error {
	var errs []error
	if err := dw.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close failed: %w", err))
	}
	if err := dw.secondary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("secondary close failed: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both writers.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.primary.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("primary validation failed: %w", err))
	}
	if err := dw.secondary.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("secondary validation failed: %w", err))
	}
	return errors.Join(errs...)
}
