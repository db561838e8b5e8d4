// Package models defines data structures shared by the archive scraper.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppEntry is one catalog entry: a display name and its app-store page.
type AppEntry struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	URL  string `mapstructure:"url" json:"url" yaml:"url"`
}

// IndexRow is a single archive crawl event taken from the index listing.
type IndexRow struct {
	Timestamp   string
	StatusCode  string
	OriginalURL string
}

// DateKey identifies a calendar day.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

func (k DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// SnapshotRecord is the representative capture kept for one day.
type SnapshotRecord struct {
	DateKey     DateKey
	SnapshotURL string
}

// Stat is the pair of fields pulled out of one snapshot page. It serializes
// as a two element JSON array: ["Jan 05, 2021", "123.4 MB"].
type Stat struct {
	UpdatedDate string
	AppSize     string
	SnapshotURL string
}

// MarshalJSON encodes the stat as an [updatedDate, appSize] pair.
func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.UpdatedDate, s.AppSize})
}

// UnmarshalJSON decodes an [updatedDate, appSize] pair.
func (s *Stat) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode stat pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("stat pair has %d elements, want 2", len(pair))
	}
	s.UpdatedDate = pair[0]
	s.AppSize = pair[1]
	return nil
}

// AppStats accumulates the stats collected for a single app, in processing order.
type AppStats struct {
	AppName string
	Stats   []Stat
}
