// Package wikipedia provides a client for the MediaWiki Action API: page
// intro extracts by title and full-text search.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the English Wikipedia Action API endpoint.
const DefaultBaseURL = "https://en.wikipedia.org/w/api.php"

// Client defines the Wikipedia lookups used for enrichment.
type Client interface {
	// Page fetches the plain-text intro of the page with the given title.
	// A missing page is not an error: the returned Page has Exists=false.
	Page(ctx context.Context, title string) (*Page, error)
	// Search runs a full-text search and returns at most limit hits.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// Page is a resolved (or missing) article.
type Page struct {
	Title   string
	Extract string
	FullURL string
	Exists  bool
}

// SearchHit is a single search result.
type SearchHit struct {
	Title   string `json:"title"`
	PageID  int    `json:"pageid"`
	Snippet string `json:"snippet"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wikipedia: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode exposes the status for retry classification.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// APIError is an error object returned in a 200 response body.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikipedia: api error %s: %s", e.Code, e.Info)
}

// Option configures the Wikipedia client.
type Option func(*httpClient)

// WithBaseURL sets a custom API endpoint (for testing).
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

// WithUserAgent sets the User-Agent header. Wikimedia rejects requests
// without an identifying agent.
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

// NewClient creates a new Wikipedia client.
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

type pageResponse struct {
	Error *APIError `json:"error"`
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
			Missing bool   `json:"missing"`
			Invalid bool   `json:"invalid"`
		} `json:"pages"`
	} `json:"query"`
}

type searchResponse struct {
	Error *APIError `json:"error"`
	Query struct {
		Search []SearchHit `json:"search"`
	} `json:"query"`
}

func (c *httpClient) Page(ctx context.Context, title string) (*Page, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"extracts|info"},
		"exintro":       {"1"},
		"explaintext":   {"1"},
		"inprop":        {"url"},
		"redirects":     {"1"},
		"titles":        {title},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp pageResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, eris.Wrapf(err, "wikipedia: page %q", title)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	if len(resp.Query.Pages) == 0 {
		return &Page{Title: title}, nil
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return &Page{Title: title}, nil
	}
	return &Page{
		Title:   p.Title,
		Extract: p.Extract,
		FullURL: p.FullURL,
		Exists:  true,
	}, nil
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{
		"action":        {"query"},
		"list":          {"search"},
		"srsearch":      {query},
		"srlimit":       {strconv.Itoa(limit)},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp searchResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, eris.Wrapf(err, "wikipedia: search %q", query)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Query.Search, nil
}

func (c *httpClient) get(ctx context.Context, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
