package finnhub

import (
	"fmt"
	"net/http"
	"time"
)

// Quote is the /quote response. Pointers distinguish a missing field from zero.
type Quote struct {
	Current       *float64 `json:"c"`
	Change        *float64 `json:"d"`
	PercentChange *float64 `json:"dp"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Timestamp     int64    `json:"t"`
}

// IsEmpty reports whether the quote carries no price, which is how Finnhub answers unknown symbols
func (q *Quote) IsEmpty() bool {
	return q == nil || q.Current == nil || *q.Current == 0
}

// Profile is the /stock/profile2 response
type Profile struct {
	Country           string   `json:"country"`
	Currency          string   `json:"currency"`
	Exchange          string   `json:"exchange"`
	Industry          string   `json:"finnhubIndustry"`
	IPO               string   `json:"ipo"`
	Logo              string   `json:"logo"`
	MarketCap         *float64 `json:"marketCapitalization"`
	Name              string   `json:"name"`
	Phone             string   `json:"phone"`
	SharesOutstanding *float64 `json:"shareOutstanding"`
	Ticker            string   `json:"ticker"`
	WebURL            string   `json:"weburl"`
	EmployeeTotal     *float64 `json:"employeeTotal"`
	Description       string   `json:"description"`
}

// BasicFinancials is the /stock/metric response. Metric values are loosely typed:
// mostly numbers, occasionally strings (dates) or null.
type BasicFinancials struct {
	Symbol     string                 `json:"symbol"`
	MetricType string                 `json:"metricType"`
	Metric     map[string]interface{} `json:"metric"`
}

// RecommendationTrend is one month of the /stock/recommendation response
type RecommendationTrend struct {
	Period     string `json:"period"`
	StrongBuy  int64  `json:"strongBuy"`
	Buy        int64  `json:"buy"`
	Hold       int64  `json:"hold"`
	Sell       int64  `json:"sell"`
	StrongSell int64  `json:"strongSell"`
	Symbol     string `json:"symbol"`
}

// PriceTarget is the /stock/price-target response
type PriceTarget struct {
	Symbol       string   `json:"symbol"`
	TargetHigh   *float64 `json:"targetHigh"`
	TargetLow    *float64 `json:"targetLow"`
	TargetMean   *float64 `json:"targetMean"`
	TargetMedian *float64 `json:"targetMedian"`
	LastUpdated  string   `json:"lastUpdated"`
}

// Snapshot is the raw, unnormalized view of one symbol across all endpoints
type Snapshot struct {
	Symbol          string
	Quote           *Quote
	Profile         *Profile
	Metrics         map[string]interface{}
	Recommendations []RecommendationTrend
	PriceTarget     *PriceTarget
	FetchedAt       time.Time
}

// APIError represents an error response from the Finnhub API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// IsRateLimited reports whether the API rejected the call for exceeding the quota
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsForbidden reports whether the key is invalid or the endpoint needs a paid plan
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusUnauthorized
}
