package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Finnhub REST API.
	DefaultBaseURL = "https://finnhub.io/api/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCallDelay keeps the free tier under 60 requests per minute.
	DefaultCallDelay = 1200 * time.Millisecond
)

// Client is a Finnhub API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallDelay sets the minimum gap between two requests. Zero disables pacing.
func WithCallDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		if delay <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
}

// NewClient creates a new Finnhub API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultCallDelay), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", path, err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("endpoint", path).
			Str("symbol", params.Get("symbol")).
			Msg("Finnhub API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

// GetQuote retrieves the real-time quote for a symbol.
// Unknown symbols are not an error: Finnhub answers with a zero price.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var result Quote
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetProfile retrieves the company profile for a symbol.
func (c *Client) GetProfile(ctx context.Context, symbol string) (*Profile, error) {
	var result Profile
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBasicFinancials retrieves the "all" metric set for a symbol.
func (c *Client) GetBasicFinancials(ctx context.Context, symbol string) (*BasicFinancials, error) {
	var result BasicFinancials
	if err := c.get(ctx, "/stock/metric", url.Values{"symbol": {symbol}, "metric": {"all"}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRecommendationTrends retrieves analyst recommendation trends, newest first.
func (c *Client) GetRecommendationTrends(ctx context.Context, symbol string) ([]RecommendationTrend, error) {
	var result []RecommendationTrend
	if err := c.get(ctx, "/stock/recommendation", url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetPriceTarget retrieves the analyst price target consensus.
func (c *Client) GetPriceTarget(ctx context.Context, symbol string) (*PriceTarget, error) {
	var result PriceTarget
	if err := c.get(ctx, "/stock/price-target", url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshot gathers everything known about a symbol in one raw structure.
// The quote call is mandatory and its failure fails the snapshot. The profile,
// metric, recommendation and price-target calls are auxiliary: a failure leaves
// the corresponding field nil. An empty quote short-circuits the auxiliary calls.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	quote, err := c.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}

	snapshot := &Snapshot{
		Symbol:    symbol,
		Quote:     quote,
		FetchedAt: time.Now().UTC(),
	}
	if quote.IsEmpty() {
		return snapshot, nil
	}

	if profile, err := c.GetProfile(ctx, symbol); err != nil {
		c.auxFailed("profile", symbol, err)
	} else {
		snapshot.Profile = profile
	}

	if financials, err := c.GetBasicFinancials(ctx, symbol); err != nil {
		c.auxFailed("metric", symbol, err)
	} else {
		snapshot.Metrics = financials.Metric
	}

	if trends, err := c.GetRecommendationTrends(ctx, symbol); err != nil {
		c.auxFailed("recommendation", symbol, err)
	} else {
		snapshot.Recommendations = trends
	}

	if target, err := c.GetPriceTarget(ctx, symbol); err != nil {
		c.auxFailed("price-target", symbol, err)
	} else {
		snapshot.PriceTarget = target
	}

	return snapshot, nil
}

func (c *Client) auxFailed(endpoint, symbol string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Str("symbol", symbol).
		Msg("Finnhub auxiliary endpoint failed - field left empty")
}
