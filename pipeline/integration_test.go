package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/config"
	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/aluiziolira/go-wayback-appstats/pipeline"
	"github.com/aluiziolira/go-wayback-appstats/scraper"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	searchURL  = "http://archive.test/cdx/search/cdx"
	archiveURL = "http://archive.test/web/"
)

func TestRunnerEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SearchURL = searchURL
	cfg.ArchiveURL = archiveURL
	cfg.Timeout = 2 * time.Second

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	client.WithTransport(transport)

	uber := models.AppEntry{Name: "Uber", URL: "https://itunes.apple.com/us/app/uber/id368677368"}
	gone := models.AppEntry{Name: "Gone", URL: "https://itunes.apple.com/us/app/gone/id1"}

	index := `[["urlkey","timestamp","original","mimetype","statuscode","digest","length","dupecount"],
["k","20200105080000","` + uber.URL + `","text/html","200","A","1","0"],
["k","20200105200000","` + uber.URL + `","text/html","200","B","1","0"],
["k","20200210000000","` + uber.URL + `","text/html","404","C","1","0"],
["k","20200301000000","` + uber.URL + `","text/html","200","D","1","0"]]`
	transport.RegisterResponderWithQuery("GET", searchURL,
		map[string]string{"output": "json", "showDupeCount": "true", "url": uber.URL},
		httpmock.NewStringResponder(200, index))
	transport.RegisterResponderWithQuery("GET", searchURL,
		map[string]string{"output": "json", "showDupeCount": "true", "url": gone.URL},
		httpmock.NewStringResponder(503, "unavailable"))

	transport.RegisterResponder("GET", archiveURL+"20200105200000/"+uber.URL,
		httpmock.NewStringResponder(200, "<li>Updated: Jan 03, 2020</li><li>Size: 152.7 MB</li>"))
	transport.RegisterResponder("GET", archiveURL+"20200301000000/"+uber.URL,
		httpmock.NewStringResponder(200, "<li>Updated: Feb 27, 2020</li><li>Size: 155.0 MB</li>"))

	indexClient, err := scraper.NewIndexClient(client, cfg.SearchURL, cfg.IndexCacheSize)
	require.NoError(t, err)
	pages, err := scraper.NewPageFetcher(client, cfg.FallbackCharset)
	require.NoError(t, err)

	dir := t.TempDir()
	writer, err := pipeline.NewJSONWriter(dir)
	require.NoError(t, err)

	runner := pipeline.NewRunner(indexClient, pages, nil, writer, cfg.ArchiveURL).WithRecorder(metrics)
	result, err := runner.Run(context.Background(), []models.AppEntry{gone, uber})
	require.NoError(t, err)
	require.NoError(t, writer.Validate())

	assert.Equal(t, 1, result.SkippedApps())
	assert.Equal(t, 2, result.TotalStats())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AppsSkippedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SnapshotsTotal))

	_, err = os.Stat(writer.Path(gone.Name))
	assert.True(t, os.IsNotExist(err), "skipped app must not get a file")

	data, err := os.ReadFile(writer.Path(uber.Name))
	require.NoError(t, err)
	var pairs [][]string
	require.NoError(t, json.Unmarshal(data, &pairs))
	assert.Equal(t, [][]string{
		{"Jan 03, 2020", "152.7 MB"},
		{"Feb 27, 2020", "155.0 MB"},
	}, pairs)

	assert.Equal(t, 4, client.RequestCount())
	assert.Equal(t, 1, client.ErrorsByType()["http_status"])
}
