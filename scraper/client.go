// Package scraper performs the archive HTTP traffic: index queries and
// snapshot page fetches, one blocking request at a time.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aluiziolira/go-wayback-appstats/config"
	"github.com/gocolly/colly/v2"
)

// Request kinds used as the metrics "kind" label.
const (
	KindIndex = "index"
	KindPage  = "page"
)

// Response is the raw outcome of a successful request.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client wraps a synchronous colly collector. Each Get runs on a clone so
// callbacks never leak between requests; clones share the base transport.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	// mu guards the counters below. A request abandoned on cancellation
	// may still update them after Get has returned.
	mu           sync.Mutex
	requestCount int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int
}

// NewClient builds a client restricted to the archive hosts in cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	hosts := make([]string, 0, 2)
	for _, raw := range []string{cfg.SearchURL, cfg.ArchiveURL} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse archive url: %w", err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("archive url %q must include a host", raw)
		}
		hosts = append(hosts, parsed.Hostname())
	}

	// colly.Async ignores its argument and always turns async on; the
	// collector must stay synchronous for Get to see its callbacks.
	collector := colly.NewCollector(
		colly.AllowedDomains(hosts...),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)
	collector.DetectCharset = cfg.DetectCharset
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Client{
		cfg:          cfg,
		collector:    collector,
		Metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// Get performs one blocking GET. Transport failures and non-2xx responses
// come back as classified errors (see errorTypeLabel). When ctx is done
// first, Get returns at once and the in-flight request is abandoned; it is
// bounded by the configured request timeout.
func (c *Client) Get(ctx context.Context, kind, rawURL string) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, c.fail(kind, rawURL, err, 0)
	}

	var (
		resp       *Response
		fetchErr   error
		statusCode int
	)
	start := time.Now()

	collector := c.collector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		c.mu.Lock()
		c.requestCount++
		c.mu.Unlock()
		c.Metrics.IncRequest(kind)
	})
	collector.OnResponse(func(r *colly.Response) {
		c.Metrics.ObserveDuration(kind, time.Since(start))
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	var visitErr error
	select {
	case <-ctx.Done():
		return nil, c.fail(kind, rawURL, ctx.Err(), 0)
	case visitErr = <-done:
	}

	if fetchErr == nil {
		fetchErr = visitErr
	}
	if fetchErr != nil {
		return nil, c.fail(kind, rawURL, fetchErr, statusCode)
	}
	if resp == nil {
		return nil, c.fail(kind, rawURL, fmt.Errorf("no response received"), 0)
	}
	return resp, nil
}

func (c *Client) fail(kind, rawURL string, err error, statusCode int) error {
	classified := classifyError(err, statusCode)
	category := errorTypeLabel(classified)

	c.mu.Lock()
	c.errorCount++
	c.errorsByType[category]++
	c.failedURLs = append(c.failedURLs, rawURL)
	c.mu.Unlock()
	c.Metrics.IncError(category)

	slog.Error("request error",
		slog.String("kind", kind),
		slog.String("url", rawURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
	return fmt.Errorf("get %s: %w", rawURL, classified)
}

// RequestCount returns the number of requests issued so far.
func (c *Client) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// ErrorCount returns the number of failed requests so far.
func (c *Client) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCount
}

// FailedURLs returns a copy of the URLs that could not be fetched.
func (c *Client) FailedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.failedURLs))
	copy(out, c.failedURLs)
	return out
}

// ErrorsByType returns a copy of the failure counts per category.
func (c *Client) ErrorsByType() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}

// WithTransport replaces the HTTP transport used by every request.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}
