package scraper

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// PageFetcher retrieves snapshot pages as text.
type PageFetcher struct {
	client        *Client
	fallback      encoding.Encoding
	detectCharset bool
}

// NewPageFetcher builds a fetcher that decodes bodies declaring no charset
// with fallbackCharset (any WHATWG encoding label, e.g. "utf-8" or
// "windows-1252").
func NewPageFetcher(client *Client, fallbackCharset string) (*PageFetcher, error) {
	enc, _ := charset.Lookup(fallbackCharset)
	if enc == nil {
		return nil, fmt.Errorf("unknown fallback charset %q", fallbackCharset)
	}
	return &PageFetcher{
		client:        client,
		fallback:      enc,
		detectCharset: client.cfg.DetectCharset,
	}, nil
}

// FetchPage performs a blocking fetch of snapshotURL and returns its text.
func (f *PageFetcher) FetchPage(ctx context.Context, snapshotURL string) (string, error) {
	resp, err := f.client.Get(ctx, KindPage, snapshotURL)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if f.detectCharset {
		return string(resp.Body), nil
	}
	text, err := decodeBody(resp.Body, resp.Headers, f.fallback)
	if err != nil {
		decodeErr := ErrDecode{Err: err}
		f.client.fail(KindPage, snapshotURL, decodeErr, 0)
		return "", fmt.Errorf("fetch page: %w", decodeErr)
	}
	return text, nil
}

// decodeBody returns body as text. A body whose Content-Type names a charset
// has already been transcoded to UTF-8 by the collector; anything else is
// decoded with fallback.
func decodeBody(body []byte, headers http.Header, fallback encoding.Encoding) (string, error) {
	if declaredCharset(headers) != "" {
		return string(body), nil
	}
	out, err := fallback.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode with fallback charset: %w", err)
	}
	return string(out), nil
}

func declaredCharset(headers http.Header) string {
	if headers == nil {
		return ""
	}
	contentType := headers.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}
