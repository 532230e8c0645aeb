// Package duckduckgo provides a client for the DuckDuckGo Instant Answer API.
package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Instant Answer API endpoint.
const DefaultBaseURL = "https://api.duckduckgo.com/"

// Client defines the Instant Answer operations.
type Client interface {
	// InstantAnswer queries the service. An empty AbstractText means the
	// service had nothing for the query; that is not an error.
	InstantAnswer(ctx context.Context, query string) (*Answer, error)
}

// Answer is the subset of the Instant Answer response used for enrichment.
type Answer struct {
	Heading        string `json:"Heading"`
	AbstractText   string `json:"AbstractText"`
	AbstractURL    string `json:"AbstractURL"`
	AbstractSource string `json:"AbstractSource"`
	Type           string `json:"Type"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("duckduckgo: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode exposes the status for retry classification.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Option configures the DuckDuckGo client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRateLimiter spaces requests with a fixed limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a new Instant Answer client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   DefaultBaseURL,
		userAgent: "atlas-cli/1.0",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) InstantAnswer(ctx context.Context, query string) (*Answer, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "duckduckgo: rate limiter wait")
		}
	}

	params := url.Values{
		"q":           {query},
		"format":      {"json"},
		"no_redirect": {"1"},
		"no_html":     {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: request failed")
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	var answer Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, eris.Wrap(err, "duckduckgo: unmarshal response")
	}
	return &answer, nil
}
