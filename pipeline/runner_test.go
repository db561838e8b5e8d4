package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArchive = "http://archive.test/web/"

var header = []string{"urlkey", "timestamp", "original", "mimetype", "statuscode", "digest", "length", "dupecount"}

func row(ts, status, original string) []string {
	return []string{"key", ts, original, "text/html", status, "D", "1", "0"}
}

type fakeIndex struct {
	listings map[string][][]string
	errs     map[string]error
	calls    []string
}

func (f *fakeIndex) FetchIndex(_ context.Context, rootURL string) ([][]string, error) {
	f.calls = append(f.calls, rootURL)
	if err := f.errs[rootURL]; err != nil {
		return nil, err
	}
	return f.listings[rootURL], nil
}

type fakePages struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakePages) FetchPage(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return "", err
	}
	content, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return content, nil
}

type memoryWriter struct {
	written  []*models.AppStats
	failWith error
}

func (mw *memoryWriter) WriteStats(stats *models.AppStats) (string, error) {
	if mw.failWith != nil {
		return "", mw.failWith
	}
	mw.written = append(mw.written, stats)
	return "mem://" + stats.AppName, nil
}

func (mw *memoryWriter) Close() error    { return nil }
func (mw *memoryWriter) Validate() error { return nil }

type countingRecorder struct {
	snapshots int
	stats     int
	misses    map[string]int
	skipped   int
}

func (c *countingRecorder) AddSnapshots(n int) { c.snapshots += n }
func (c *countingRecorder) IncStats()          { c.stats++ }
func (c *countingRecorder) IncMiss(field string) {
	if c.misses == nil {
		c.misses = make(map[string]int)
	}
	c.misses[field]++
}
func (c *countingRecorder) IncSkipped() { c.skipped++ }

func snapshotURL(ts, original string) string {
	return testArchive + ts + "/" + original
}

func TestRunAppCollectsInProcessingOrder(t *testing.T) {
	app := models.AppEntry{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"}
	index := &fakeIndex{listings: map[string][][]string{
		app.URL: {
			header,
			row("20200301000000", "200", app.URL),
			row("20200105000000", "200", app.URL),
			row("20200106000000", "302", app.URL),
		},
	}}
	pages := &fakePages{pages: map[string]string{
		snapshotURL("20200301000000", app.URL): "Mar 01, 2020 ... 150.2 MB",
		snapshotURL("20200105000000", app.URL): "Jan 04, 2020 ... 140.0 MB",
	}}

	runner := NewRunner(index, pages, nil, &memoryWriter{}, testArchive)
	stats, result, err := runner.RunApp(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, []models.Stat{
		{UpdatedDate: "Mar 01, 2020", AppSize: "150.2 MB", SnapshotURL: snapshotURL("20200301000000", app.URL)},
		{UpdatedDate: "Jan 04, 2020", AppSize: "140.0 MB", SnapshotURL: snapshotURL("20200105000000", app.URL)},
	}, stats.Stats)
	assert.Equal(t, 2, result.Snapshots)
	assert.Equal(t, 2, result.Stats)
	assert.Len(t, pages.calls, 2, "non-200 rows must not be fetched")
}

func TestRunContinuesPastFailedPagesAndMisses(t *testing.T) {
	app := models.AppEntry{Name: "Skype", URL: "https://itunes.apple.com/us/app/skype/id304878510"}
	index := &fakeIndex{listings: map[string][][]string{
		app.URL: {
			header,
			row("20190101000000", "200", app.URL),
			row("20190102000000", "200", app.URL),
			row("20190103000000", "200", app.URL),
			row("20190104000000", "200", app.URL),
		},
	}}
	pages := &fakePages{
		pages: map[string]string{
			snapshotURL("20190101000000", app.URL): "Jan 01, 2019 80.1 MB",
			snapshotURL("20190103000000", app.URL): "no date here 80.3 MB",
			snapshotURL("20190104000000", app.URL): "Jan 04, 2019 80.4 MB",
		},
		errs: map[string]error{
			snapshotURL("20190102000000", app.URL): errors.New("connection reset"),
		},
	}
	writer := &memoryWriter{}
	recorder := &countingRecorder{}

	runner := NewRunner(index, pages, nil, writer, testArchive).WithRecorder(recorder)
	result, err := runner.Run(context.Background(), []models.AppEntry{app})
	require.NoError(t, err)

	require.Len(t, writer.written, 1)
	assert.Equal(t, []models.Stat{
		{UpdatedDate: "Jan 01, 2019", AppSize: "80.1 MB", SnapshotURL: snapshotURL("20190101000000", app.URL)},
		{UpdatedDate: "Jan 04, 2019", AppSize: "80.4 MB", SnapshotURL: snapshotURL("20190104000000", app.URL)},
	}, writer.written[0].Stats)

	require.Len(t, result.Apps, 1)
	got := result.Apps[0]
	assert.Equal(t, 4, got.Snapshots)
	assert.Equal(t, 2, got.Stats)
	assert.Equal(t, 1, got.Misses)
	assert.Equal(t, 1, got.FetchErrors)
	assert.Equal(t, "mem://Skype", got.OutputPath)

	assert.Equal(t, 4, recorder.snapshots)
	assert.Equal(t, 2, recorder.stats)
	assert.Equal(t, map[string]int{"updated_date": 1}, recorder.misses)
}

func TestRunSkipsAppWhenIndexFails(t *testing.T) {
	broken := models.AppEntry{Name: "Broken", URL: "https://itunes.apple.com/us/app/broken/id1"}
	malformed := models.AppEntry{Name: "Malformed", URL: "https://itunes.apple.com/us/app/malformed/id2"}
	good := models.AppEntry{Name: "Good", URL: "https://itunes.apple.com/us/app/good/id3"}

	index := &fakeIndex{
		listings: map[string][][]string{
			malformed.URL: {{"urlkey", "timestamp"}},
			good.URL:      {header, row("20200101000000", "200", good.URL)},
		},
		errs: map[string]error{broken.URL: errors.New("dns failure")},
	}
	pages := &fakePages{pages: map[string]string{
		snapshotURL("20200101000000", good.URL): "Jan 01, 2020 1.5 MB",
	}}
	writer := &memoryWriter{}
	recorder := &countingRecorder{}

	runner := NewRunner(index, pages, nil, writer, testArchive).WithRecorder(recorder)
	result, err := runner.Run(context.Background(), []models.AppEntry{broken, malformed, good})
	require.NoError(t, err)

	require.Len(t, writer.written, 1)
	assert.Equal(t, "Good", writer.written[0].AppName)
	assert.Equal(t, 2, result.SkippedApps())
	assert.Equal(t, 1, result.TotalStats())
	assert.Equal(t, 2, recorder.skipped)
	assert.Equal(t, []string{broken.URL, malformed.URL, good.URL}, index.calls)
}

func TestRunEmptyIndexWritesEmptyStats(t *testing.T) {
	app := models.AppEntry{Name: "Fresh", URL: "https://itunes.apple.com/us/app/fresh/id9"}
	index := &fakeIndex{listings: map[string][][]string{}}
	writer := &memoryWriter{}

	runner := NewRunner(index, &fakePages{}, nil, writer, testArchive)
	result, err := runner.Run(context.Background(), []models.AppEntry{app})
	require.NoError(t, err)

	require.Len(t, writer.written, 1)
	assert.Empty(t, writer.written[0].Stats)
	assert.False(t, result.Apps[0].Skipped)
}

func TestRunStopsOnWriterError(t *testing.T) {
	app := models.AppEntry{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"}
	index := &fakeIndex{listings: map[string][][]string{}}
	writer := &memoryWriter{failWith: os.ErrPermission}

	runner := NewRunner(index, &fakePages{}, nil, writer, testArchive)
	_, err := runner.Run(context.Background(), []models.AppEntry{app, app})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Len(t, index.calls, 1)
}

func TestRunCanceled(t *testing.T) {
	app := models.AppEntry{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"}
	index := &fakeIndex{listings: map[string][][]string{
		app.URL: {header, row("20200101000000", "200", app.URL)},
	}}
	pages := &fakePages{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(index, pages, nil, &memoryWriter{}, testArchive)
	_, err := runner.Run(ctx, []models.AppEntry{app})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pages.calls)
}

func TestRunAppFreshAccumulatorPerCall(t *testing.T) {
	app := models.AppEntry{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"}
	index := &fakeIndex{listings: map[string][][]string{
		app.URL: {header, row("20200101000000", "200", app.URL)},
	}}
	pages := &fakePages{pages: map[string]string{
		snapshotURL("20200101000000", app.URL): "Jan 01, 2020 1.5 MB",
	}}

	runner := NewRunner(index, pages, nil, &memoryWriter{}, testArchive)
	first, _, err := runner.RunApp(context.Background(), app)
	require.NoError(t, err)
	second, _, err := runner.RunApp(context.Background(), app)
	require.NoError(t, err)

	assert.Len(t, first.Stats, 1)
	assert.Len(t, second.Stats, 1)
}
