package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/resilience"
	"github.com/lukeslp/reference-renamer/internal/source"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the arXiv API endpoint.
	BaseURL = "https://export.arxiv.org/api/query"

	// DefaultTimeout is the HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// RequestInterval is the spacing arXiv asks API clients to keep.
	RequestInterval = 3 * time.Second
)

var (
	// ErrNotFound indicates an empty feed or an arXiv error entry.
	ErrNotFound = fmt.Errorf("arxiv: %w", source.ErrNotFound)

	// ErrRateLimited indicates a 429/503 throttle answer.
	ErrRateLimited = fmt.Errorf("arxiv: %w", source.ErrRateLimited)

	// ErrInvalidResponse indicates a body that is not an Atom feed.
	ErrInvalidResponse = errors.New("arxiv: invalid response")
)

// Client is a rate-limited arXiv API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRateLimit overrides the request rate.
func WithRateLimit(r rate.Limit) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, 1)
	}
}

// NewClient creates an arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(RequestInterval), 1),
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetByID fetches one preprint by arXiv identifier (e.g. 2106.15928).
func (c *Client) GetByID(ctx context.Context, id string) (*Entry, error) {
	entries, err := c.query(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// SearchTitle returns the top title-search hit.
func (c *Client) SearchTitle(ctx context.Context, title string) (*Entry, error) {
	phrase := strings.Join(strings.Fields(strings.ReplaceAll(title, `"`, " ")), " ")
	entries, err := c.query(ctx, url.Values{
		"search_query": {`ti:"` + phrase + `"`},
		"max_results":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (c *Client) query(ctx context.Context, q url.Values) ([]Entry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		err := fmt.Errorf("arxiv returned status %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var entries []Entry
	for _, e := range f.Entries {
		// arXiv reports bad ids as an entry under /api/errors
		if strings.Contains(e.ID, "/api/errors") {
			continue
		}
		entries = append(entries, mapEntry(e))
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

func mapEntry(e entry) Entry {
	out := Entry{
		ID:    strings.TrimSpace(e.ID),
		Title: strings.Join(strings.Fields(e.Title), " "),
		DOI:   record.NormalizeDOI(e.DOI),
	}
	for _, a := range e.Authors {
		if name := strings.Join(strings.Fields(a.Name), " "); name != "" {
			out.Authors = append(out.Authors, name)
		}
	}
	if p := strings.TrimSpace(e.Published); len(p) >= 4 {
		if y, err := strconv.Atoi(p[:4]); err == nil {
			out.Year = y
		}
	}
	if out.DOI == "" {
		for _, l := range e.Links {
			if l.Title == "doi" {
				out.DOI = record.NormalizeDOI(l.Href)
				break
			}
		}
	}
	return out
}
