// Package qloo provides a client for the Qloo insights API, used to look up
// entities (movies, artists, books, podcasts, destinations) carrying a tag.
package qloo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justestif/go-moodflow/internal/catalog"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/metrics"
)

const (
	// DefaultBaseURL is the insights endpoint.
	DefaultBaseURL = "https://hackathon.api.qloo.com/v2/insights"

	// DefaultLimit is the number of items kept per fetch. Larger limits are
	// capped to it.
	DefaultLimit = 4

	userAgent    = "go-moodflow/1.0"
	apiKeyHeader = "x-api-key"
	maxErrorBody = 256
)

// Sentinel errors.
var (
	// ErrUnknownCategory is returned for a category without an entity type.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrMalformedResponse is returned when the response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed insights response")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("qloo circuit breaker open")
)

// Fetcher abstracts recommendation lookups for testing.
type Fetcher interface {
	Fetch(ctx context.Context, category catalog.Category, tag string) ([]Item, error)
}

// Config holds insights API configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limit   int
}

// Client is an insights API client guarded by a circuit breaker.
type Client struct {
	apiKey     string
	baseURL    string
	limit      int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBreakerSettings replaces the default circuit breaker.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(st)
	}
}

// NewClient creates a new insights API client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := cfg.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker(DefaultBreakerSettings()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "qloo",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[[]byte] {
	next := st.OnStateChange
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		if next != nil {
			next(name, from, to)
		}
	}
	// Caller cancellation says nothing about the health of the API.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	return gobreaker.NewCircuitBreaker[[]byte](st)
}

// Fetch returns up to the configured limit of entities of the category's
// type carrying tag, in API order. The returned slice is never nil; on error
// it is empty. The tag is forwarded as given. No retry is attempted.
func (c *Client) Fetch(ctx context.Context, category catalog.Category, tag string) ([]Item, error) {
	items, err := c.fetch(ctx, category, tag)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("category", string(category)).
			Str("tag", tag).
			Msg("Recommendation fetch failed")
	}
	metrics.RecommendationFetchesTotal.WithLabelValues(string(category), outcome).Inc()
	metrics.RecommendationItems.WithLabelValues(string(category)).Observe(float64(len(items)))

	return items, err
}

func (c *Client) fetch(ctx context.Context, category catalog.Category, tag string) ([]Item, error) {
	entityType := category.EntityType()
	if entityType == "" {
		return []Item{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	params := url.Values{
		"filter.type": {"urn:entity:" + entityType},
		"filter.tags": {tag},
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return []Item{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return []Item{}, fmt.Errorf("fetching %s recommendations: %w", entityType, err)
	}

	var resp insightsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return []Item{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	entities := resp.Results.Entities
	if len(entities) > c.limit {
		entities = entities[:c.limit]
	}

	items := make([]Item, 0, len(entities))
	for _, e := range entities {
		items = append(items, e.toItem())
	}
	return items, nil
}

// doRequest performs a single GET request.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

var _ Fetcher = (*Client)(nil)
