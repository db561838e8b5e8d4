// Package pipeline drives the per-app fetch, parse, and persist flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/aluiziolira/go-wayback-appstats/parser"
)

// IndexSource returns the raw archive listing for a page.
type IndexSource interface {
	FetchIndex(ctx context.Context, rootURL string) ([][]string, error)
}

// PageSource returns the text of a snapshot page.
type PageSource interface {
	FetchPage(ctx context.Context, snapshotURL string) (string, error)
}

// Recorder receives run counters. *scraper.Metrics satisfies it.
type Recorder interface {
	AddSnapshots(n int)
	IncStats()
	IncMiss(field string)
	IncSkipped()
}

// StatsWriter persists the stats of one app and reports where they went.
type StatsWriter interface {
	WriteStats(stats *models.AppStats) (string, error)
	Close() error
	Validate() error
}

// Runner processes catalog entries one at a time, one request in flight.
type Runner struct {
	index      IndexSource
	pages      PageSource
	extractor  *parser.Extractor
	writer     StatsWriter
	archiveURL string
	recorder   Recorder
}

// NewRunner wires the sources, extractor, and writer. archiveURL prefixes
// every snapshot address built from the index.
func NewRunner(index IndexSource, pages PageSource, extractor *parser.Extractor, writer StatsWriter, archiveURL string) *Runner {
	if extractor == nil {
		extractor = parser.DefaultExtractor()
	}
	return &Runner{
		index:      index,
		pages:      pages,
		extractor:  extractor,
		writer:     writer,
		archiveURL: archiveURL,
		recorder:   nopRecorder{},
	}
}

// WithRecorder sets the destination for run counters.
func (r *Runner) WithRecorder(rec Recorder) *Runner {
	if rec != nil {
		r.recorder = rec
	}
	return r
}

// Run processes every app in order. An app whose index cannot be read is
// logged and skipped; a failed page only loses that page. Writer errors and
// cancellation stop the run.
func (r *Runner) Run(ctx context.Context, apps []models.AppEntry) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.RunResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
	}()

	for _, app := range apps {
		stats, appResult, err := r.RunApp(ctx, app)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			slog.Error("skipping app",
				slog.String("app", app.Name),
				slog.String("url", app.URL),
				slog.Any("error", err),
			)
			r.recorder.IncSkipped()
			result.Apps = append(result.Apps, appResult)
			continue
		}

		slog.Info("saving stats", slog.String("app", app.Name), slog.Int("stats", len(stats.Stats)))
		path, err := r.writer.WriteStats(stats)
		if err != nil {
			return result, fmt.Errorf("write stats for %s: %w", app.Name, err)
		}
		appResult.OutputPath = path
		result.Apps = append(result.Apps, appResult)
	}
	return result, nil
}

// RunApp collects the stats of a single app. The returned accumulator is
// fresh for every call and ordered by processing, not by date.
func (r *Runner) RunApp(ctx context.Context, app models.AppEntry) (*models.AppStats, models.AppResult, error) {
	appResult := models.AppResult{AppName: app.Name}
	slog.Info("processing app", slog.String("app", app.Name))

	raw, err := r.index.FetchIndex(ctx, app.URL)
	if err != nil {
		appResult.Skipped = true
		appResult.Err = err
		return nil, appResult, fmt.Errorf("index lookup: %w", err)
	}
	snapshots, err := parser.Snapshots(raw, r.archiveURL)
	if err != nil {
		appResult.Skipped = true
		appResult.Err = err
		return nil, appResult, fmt.Errorf("index listing: %w", err)
	}
	appResult.Snapshots = len(snapshots)
	r.recorder.AddSnapshots(len(snapshots))

	stats := &models.AppStats{AppName: app.Name, Stats: make([]models.Stat, 0, len(snapshots))}
	total := len(snapshots)
	for i, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, appResult, err
		}

		content, err := r.pages.FetchPage(ctx, snapshot.SnapshotURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, appResult, ctxErr
			}
			appResult.FetchErrors++
			slog.Warn("skipping page", slog.String("url", snapshot.SnapshotURL), slog.Any("error", err))
			continue
		}
		slog.Info("processing page", slog.String("app", app.Name), slog.Int("page", i+1), slog.Int("total", total))

		stat, err := r.extractor.Extract(content)
		if err != nil {
			appResult.Misses++
			var missing *parser.ErrFieldMissing
			if errors.As(err, &missing) {
				for _, field := range missing.Fields {
					r.recorder.IncMiss(field)
				}
				slog.Warn("pattern not found",
					slog.String("url", snapshot.SnapshotURL),
					slog.Any("fields", missing.Fields),
				)
			}
			continue
		}
		stat.SnapshotURL = snapshot.SnapshotURL
		stats.Stats = append(stats.Stats, stat)
		r.recorder.IncStats()
	}

	appResult.Stats = len(stats.Stats)
	return stats, appResult, nil
}

type nopRecorder struct{}

func (nopRecorder) AddSnapshots(int) {}
func (nopRecorder) IncStats()        {}
func (nopRecorder) IncMiss(string)   {}
func (nopRecorder) IncSkipped()      {}
