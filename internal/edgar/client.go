package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL serves the JSON APIs (companyfacts, submissions).
	DefaultBaseURL = "https://data.sec.gov"

	// DefaultArchiveURL serves the filing archive and the ticker map.
	DefaultArchiveURL = "https://www.sec.gov"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit stays well under SEC's 10 requests per second fair-access limit.
	DefaultRateLimit = 5

	// tickerMapTTL is how long the ticker -> CIK map is reused before a refetch.
	tickerMapTTL = 24 * time.Hour
)

// Client is an SEC EDGAR client. SEC rejects requests without a descriptive User-Agent.
type Client struct {
	baseURL    string
	archiveURL string
	userAgent  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter

	tickersMu       sync.Mutex
	tickers         map[string]CompanyTicker
	tickersLoadedAt time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets the data API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithArchiveURL sets the archive/files base URL.
func WithArchiveURL(archiveURL string) ClientOption {
	return func(c *Client) {
		c.archiveURL = strings.TrimRight(archiveURL, "/")
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

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new EDGAR client.
func NewClient(userAgent string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		archiveURL: DefaultArchiveURL,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) get(ctx context.Context, reqURL, endpoint string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", reqURL).
			Msg("SEC API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   endpoint,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	return nil
}

// GetCompanyFacts retrieves every XBRL fact SEC holds for a company.
// Returns an error wrapping ErrNotFound when the CIK has no facts.
func (c *Client) GetCompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	endpoint := fmt.Sprintf("/api/xbrl/companyfacts/CIK%s.json", PadCIK(cik))

	var result CompanyFacts
	if err := c.get(ctx, c.baseURL+endpoint, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSubmissions retrieves the filing history index for a company.
func (c *Client) GetSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	endpoint := fmt.Sprintf("/submissions/CIK%s.json", PadCIK(cik))

	var result Submissions
	if err := c.get(ctx, c.baseURL+endpoint, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LookupCIK resolves a US ticker to its CIK using SEC's ticker map.
// The map is fetched lazily and reused for a day. Unknown tickers return ErrNotFound.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (*CompanyTicker, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	c.tickersMu.Lock()
	defer c.tickersMu.Unlock()

	if c.tickers == nil || time.Since(c.tickersLoadedAt) > tickerMapTTL {
		endpoint := "/files/company_tickers.json"
		var raw map[string]tickerEntry
		if err := c.get(ctx, c.archiveURL+endpoint, endpoint, &raw); err != nil {
			return nil, err
		}

		tickers := make(map[string]CompanyTicker, len(raw))
		for _, entry := range raw {
			symbol := strings.ToUpper(entry.Ticker)
			tickers[symbol] = CompanyTicker{
				CIK:    PadCIK(fmt.Sprintf("%d", entry.CIK)),
				Ticker: symbol,
				Title:  entry.Title,
			}
		}
		c.tickers = tickers
		c.tickersLoadedAt = time.Now()
	}

	match, ok := c.tickers[ticker]
	if !ok {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ErrNotFound)
	}
	return &match, nil
}

// ArchiveURL builds the browsable folder URL of one filing
func (c *Client) ArchiveURL(cik, accession string) string {
	trimmed := strings.TrimLeft(PadCIK(cik), "0")
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/", c.archiveURL, trimmed, strings.ReplaceAll(accession, "-", ""))
}
