// Package oapif is a small client for the OGC API - Features endpoints behind
// the climate data portal, plus the expectations the suite asserts on its
// responses.
package oapif

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/klauspost/compress/gzip"
)

const defaultUserAgent = "climate-e2e/0.1"

// Client issues GET requests against one OGC API root.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the API root at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  defaultUserAgent,
		logger:     logging.GetLogger("oapif"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ItemsURL builds the items URL of collection for q.
func (c *Client) ItemsURL(collection string, q ItemsQuery) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/collections/" + url.PathEscape(collection) + "/items"
	u.RawQuery = q.Values().Encode()
	return u.String()
}

// Items fetches collection items.
func (c *Client) Items(ctx context.Context, collection string, q ItemsQuery) (*Response, error) {
	return c.Get(ctx, c.ItemsURL(collection, q))
}

// Get fetches rawURL. The request advertises gzip so the server's
// Content-Encoding stays visible on the Response; the body is decoded here.
// Non-2xx statuses are returned as a Response, not an error.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	encoding := resp.Header.Get("Content-Encoding")
	body, err := readBody(resp.Body, encoding)
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to read body: %w", rawURL, err)
	}

	c.logger.DebugWithFields("request complete",
		logging.Field("url", rawURL),
		logging.Field("status", resp.StatusCode),
		logging.Field("content_encoding", encoding),
		logging.Field("bytes", len(body)),
		logging.Field("duration_ms", time.Since(start).Milliseconds()),
	)

	return &Response{
		URL:             rawURL,
		Method:          http.MethodGet,
		StatusCode:      resp.StatusCode,
		Header:          resp.Header,
		ContentEncoding: encoding,
		Body:            body,
	}, nil
}

func readBody(r io.Reader, encoding string) ([]byte, error) {
	if !strings.Contains(strings.ToLower(encoding), "gzip") {
		return io.ReadAll(r)
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid gzip stream: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Response is a fully read API response.
// Browser intercepts are converted to the same type so expectations apply to both.
type Response struct {
	URL             string
	Method          string
	StatusCode      int
	Header          http.Header
	ContentEncoding string
	Body            []byte
}

// FeatureCollection decodes the body as GeoJSON.
func (r *Response) FeatureCollection() (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(r.Body, &fc); err != nil {
		return nil, fmt.Errorf("response from %s is not JSON: %w", r.URL, err)
	}
	return &fc, nil
}

// CSVHeader returns the column names of a CSV body.
func (r *Response) CSVHeader() ([]string, error) {
	cr := csv.NewReader(bytes.NewReader(r.Body))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("response from %s has an empty CSV body", r.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("response from %s is not CSV: %w", r.URL, err)
	}
	return header, nil
}

// FirstLine returns the body up to the first newline.
func (r *Response) FirstLine() string {
	line, _, _ := bytes.Cut(r.Body, []byte("\n"))
	return strings.TrimRight(string(line), "\r")
}
