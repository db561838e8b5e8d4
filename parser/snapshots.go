// Package parser turns archive index listings and snapshot pages into stats.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/models"
)

var (
	// ErrMalformedHeader is returned when the index header lacks a required column.
	ErrMalformedHeader = errors.New("parser: malformed index header")
	// ErrBadTimestamp is returned for timestamps that are not YYYYMMDDhhmmss.
	ErrBadTimestamp = errors.New("parser: bad timestamp")
)

// Index column names used by the archive search endpoint.
const (
	FieldTimestamp  = "timestamp"
	FieldStatusCode = "statuscode"
	FieldOriginal   = "original"
)

const (
	timestampLayout = "20060102150405"
	statusOK        = "200"
)

// ParseIndex decodes raw index rows. The first row names the columns; the
// remaining rows are mapped by name. Rows shorter than the columns they need
// are dropped with a warning. An empty listing yields no rows and no error.
func ParseIndex(raw [][]string) ([]models.IndexRow, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(raw[0]))
	for i, name := range raw[0] {
		columns[name] = i
	}

	idx := make(map[string]int, 3)
	for _, field := range []string{FieldTimestamp, FieldStatusCode, FieldOriginal} {
		i, ok := columns[field]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q column in %v", ErrMalformedHeader, field, raw[0])
		}
		idx[field] = i
	}
	width := 0
	for _, i := range idx {
		if i+1 > width {
			width = i + 1
		}
	}

	rows := make([]models.IndexRow, 0, len(raw)-1)
	for n, item := range raw[1:] {
		if len(item) < width {
			slog.Warn("dropping short index row",
				slog.Int("row", n+1),
				slog.Int("columns", len(item)),
			)
			continue
		}
		rows = append(rows, models.IndexRow{
			Timestamp:   item[idx[FieldTimestamp]],
			StatusCode:  item[idx[FieldStatusCode]],
			OriginalURL: item[idx[FieldOriginal]],
		})
	}
	return rows, nil
}

// ParseTimestamp parses a 14 digit archive timestamp into the calendar day it falls on.
func ParseTimestamp(ts string) (models.DateKey, error) {
	if len(ts) != len(timestampLayout) {
		return models.DateKey{}, fmt.Errorf("%w: %q has %d characters, want %d", ErrBadTimestamp, ts, len(ts), len(timestampLayout))
	}
	tm, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return models.DateKey{}, fmt.Errorf("%w: %q: %v", ErrBadTimestamp, ts, err)
	}
	return models.DateKey{Year: tm.Year(), Month: tm.Month(), Day: tm.Day()}, nil
}

// SnapshotURL builds the fetchable address of a capture.
func SnapshotURL(archiveURL, timestamp, original string) string {
	return archiveURL + timestamp + "/" + original
}

// DedupeByDay keeps one capture per calendar day. Only rows with status
// "200" count; for a given day the row seen last wins, while the day keeps
// the position where it first appeared. Rows with unusable timestamps are
// logged and dropped.
func DedupeByDay(rows []models.IndexRow, archiveURL string) []models.SnapshotRecord {
	var order []models.DateKey
	byDay := make(map[models.DateKey]string)

	for _, row := range rows {
		if row.StatusCode != statusOK {
			continue
		}
		key, err := ParseTimestamp(row.Timestamp)
		if err != nil {
			slog.Warn("dropping index row", slog.String("timestamp", row.Timestamp), slog.Any("error", err))
			continue
		}
		if _, ok := byDay[key]; !ok {
			order = append(order, key)
		}
		byDay[key] = SnapshotURL(archiveURL, row.Timestamp, row.OriginalURL)
	}

	out := make([]models.SnapshotRecord, 0, len(order))
	for _, key := range order {
		out = append(out, models.SnapshotRecord{DateKey: key, SnapshotURL: byDay[key]})
	}
	return out
}

// Snapshots is ParseIndex followed by DedupeByDay.
func Snapshots(raw [][]string, archiveURL string) ([]models.SnapshotRecord, error) {
	rows, err := ParseIndex(raw)
	if err != nil {
		return nil, err
	}
	return DedupeByDay(rows, archiveURL), nil
}
