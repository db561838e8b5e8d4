package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/config"
	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/aluiziolira/go-wayback-appstats/parser"
	"github.com/aluiziolira/go-wayback-appstats/pipeline"
	"github.com/aluiziolira/go-wayback-appstats/scraper"
	"github.com/aluiziolira/go-wayback-appstats/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scrape the catalog and write per-app stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runStats(ctx, c.cfg, cmd.OutOrStdout())
		},
	}
}

func runStats(ctx context.Context, cfg *config.Config, out io.Writer) error {
	slog.Info("starting run",
		slog.Int("apps", len(cfg.Apps)),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("format", cfg.OutputFormat),
	)

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		return fmt.Errorf("initialising client: %w", err)
	}
	index, err := scraper.NewIndexClient(client, cfg.SearchURL, cfg.IndexCacheSize)
	if err != nil {
		return fmt.Errorf("initialising index client: %w", err)
	}
	pages, err := scraper.NewPageFetcher(client, cfg.FallbackCharset)
	if err != nil {
		return fmt.Errorf("initialising page fetcher: %w", err)
	}
	extractor, err := parser.NewExtractor(cfg.UpdatedPattern, cfg.SizePattern)
	if err != nil {
		return err
	}

	// Output is prepared before any request so a bad directory fails fast.
	writer, err := createWriter(cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	runner := pipeline.NewRunner(index, pages, extractor, writer, cfg.ArchiveURL).WithRecorder(metrics)
	result, runErr := runner.Run(ctx, cfg.Apps)
	if result != nil {
		result.RequestCount = client.RequestCount()
		result.ErrorCount = client.ErrorCount()
		result.ErrorsByType = client.ErrorsByType()
		result.FailedURLs = client.FailedURLs()
		printSummary(out, result)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}

func createWriter(cfg *config.Config) (pipeline.StatsWriter, error) {
	var files pipeline.StatsWriter
	switch cfg.OutputFormat {
	case "json":
		w, err := pipeline.NewJSONWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		files = w
	case "csv":
		w, err := pipeline.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		files = w
	case "dual":
		jsonWriter, err := pipeline.NewJSONWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		csvWriter, err := pipeline.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		files = pipeline.NewDualWriter(jsonWriter, csvWriter)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}

	if cfg.DatabasePath == "" {
		return files, nil
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return pipeline.NewDualWriter(files, db), nil
}

func printSummary(out io.Writer, result *models.RunResult) {
	t := newTable(out)
	t.SetTitle("Run complete")
	t.AppendHeader(table.Row{"App", "Snapshots", "Stats", "Misses", "Fetch errors", "Output"})
	snapshots, misses, fetchErrors := 0, 0, 0
	for _, app := range result.Apps {
		output := app.OutputPath
		if app.Skipped {
			output = "skipped"
			if app.Err != nil {
				output = "skipped: " + app.Err.Error()
			}
		}
		t.AppendRow(table.Row{app.AppName, app.Snapshots, app.Stats, app.Misses, app.FetchErrors, output})
		snapshots += app.Snapshots
		misses += app.Misses
		fetchErrors += app.FetchErrors
	}
	t.AppendFooter(table.Row{"Total", snapshots, result.TotalStats(), misses, fetchErrors,
		fmt.Sprintf("%d skipped", result.SkippedApps())})
	t.Render()

	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	duration := result.EndTime.Sub(result.StartTime)

	totals := newTable(out)
	totals.AppendRows([]table.Row{
		{"Requests", result.RequestCount},
		{"Success rate", fmt.Sprintf("%.2f%%", successRate)},
		{"Errors", result.ErrorCount},
		{"Error types", formatErrorTypes(result.ErrorsByType)},
		{"Failed URLs", len(result.FailedURLs)},
		{"Duration", duration.Round(time.Millisecond)},
	})
	totals.Render()
}

func formatErrorTypes(byType map[string]int) string {
	if len(byType) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(byType))
	for k := range byType {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, byType[k]))
	}
	return strings.Join(parts, " ")
}
