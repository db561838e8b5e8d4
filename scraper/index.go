package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IndexClient queries the archive search endpoint for every known capture
// of a page. Decoded listings are memoised per root URL for the lifetime of
// the client when a cache size is configured.
type IndexClient struct {
	client    *Client
	searchURL *url.URL
	cache     *lru.Cache[string, [][]string]
}

// NewIndexClient builds an index client. cacheSize 0 disables the cache.
func NewIndexClient(client *Client, searchURL string, cacheSize int) (*IndexClient, error) {
	parsed, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}

	ic := &IndexClient{client: client, searchURL: parsed}
	if cacheSize > 0 {
		cache, err := lru.New[string, [][]string](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create index cache: %w", err)
		}
		ic.cache = cache
	}
	return ic, nil
}

// QueryURL returns the search request for rootURL: JSON output with
// duplicate counts.
func (ic *IndexClient) QueryURL(rootURL string) string {
	u := *ic.searchURL
	q := u.Query()
	q.Set("output", "json")
	q.Set("showDupeCount", "true")
	q.Set("url", rootURL)
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchIndex returns the raw listing for rootURL: a header row naming the
// columns followed by one row per capture. An archive with no captures
// yields an empty listing. Any transport or decode failure is returned.
func (ic *IndexClient) FetchIndex(ctx context.Context, rootURL string) ([][]string, error) {
	if ic.cache != nil {
		if rows, ok := ic.cache.Get(rootURL); ok {
			ic.client.Metrics.IncCacheHit()
			slog.Debug("index cache hit", slog.String("url", rootURL))
			return rows, nil
		}
	}

	query := ic.QueryURL(rootURL)
	resp, err := ic.client.Get(ctx, KindIndex, query)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}

	rows, err := decodeIndex(resp.Body)
	if err != nil {
		decodeErr := ErrDecode{Err: err}
		ic.client.fail(KindIndex, query, decodeErr, 0)
		return nil, fmt.Errorf("fetch index: %w", decodeErr)
	}

	if ic.cache != nil {
		ic.cache.Add(rootURL, rows)
	}
	return rows, nil
}

func decodeIndex(body []byte) ([][]string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode index json: %w", err)
	}
	return rows, nil
}
