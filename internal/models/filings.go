package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilingsStatus distinguishes the filings outcomes the report renders differently
type FilingsStatus string

const (
	FilingsAvailable     FilingsStatus = "available"
	FilingsNotApplicable FilingsStatus = "not_applicable" // entity has no filings identifier
	FilingsNotFound      FilingsStatus = "not_found"      // source has no document for the identifier
	FilingsUnavailable   FilingsStatus = "unavailable"    // fetch failed, timed out or was undecodable
)

// FilingsResult is the outcome of one filings lookup
type FilingsResult struct {
	Status FilingsStatus  `json:"status"`
	Record *FilingsRecord `json:"record,omitempty"`
	Err    error          `json:"-"`
}

// Error returns the failure text, or "" for a usable result
func (r FilingsResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Metric names the fixed set of extracted financial-statement metrics
type Metric string

const (
	MetricRevenue            Metric = "revenue"
	MetricGrossProfit        Metric = "gross_profit"
	MetricOperatingIncome    Metric = "operating_income"
	MetricNetIncome          Metric = "net_income"
	MetricEPSDiluted         Metric = "eps_diluted"
	MetricEPSBasic           Metric = "eps_basic"
	MetricSharesOutstanding  Metric = "shares_outstanding"
	MetricTotalAssets        Metric = "total_assets"
	MetricTotalLiabilities   Metric = "total_liabilities"
	MetricStockholdersEquity Metric = "stockholders_equity"
	MetricCash               Metric = "cash"
	MetricLongTermDebt       Metric = "long_term_debt"
	MetricCurrentAssets      Metric = "current_assets"
	MetricCurrentLiabilities Metric = "current_liabilities"
	MetricOperatingCashFlow  Metric = "operating_cash_flow"
	MetricCapex              Metric = "capex"
	MetricDividendsPaid      Metric = "dividends_paid"
)

// MetricValue is one selected observation with its period and filing metadata
type MetricValue struct {
	Value        decimal.Decimal `json:"value"`
	Unit         string          `json:"unit"`
	Concept      string          `json:"concept"`
	PeriodStart  *time.Time      `json:"period_start,omitempty"` // nil for instants
	PeriodEnd    time.Time       `json:"period_end"`
	Filed        time.Time       `json:"filed"`
	Form         string          `json:"form"`
	FiscalYear   int             `json:"fiscal_year,omitempty"`
	FiscalPeriod string          `json:"fiscal_period,omitempty"`
	Accession    string          `json:"accession,omitempty"`
}

// SpanDays returns the period length in days, 0 for instants
func (v MetricValue) SpanDays() int {
	if v.PeriodStart == nil {
		return 0
	}
	return int(v.PeriodEnd.Sub(*v.PeriodStart).Hours() / 24)
}

// MetricPair holds the latest annual and latest quarterly value for one metric; either may be nil
type MetricPair struct {
	Annual    *MetricValue `json:"annual,omitempty"`
	Quarterly *MetricValue `json:"quarterly,omitempty"`
}

// IsEmpty reports whether neither period produced a value
func (p MetricPair) IsEmpty() bool {
	return p.Annual == nil && p.Quarterly == nil
}

// DerivedMetrics are ratios computed from the annual values; each is nil when an input is missing
type DerivedMetrics struct {
	GrossMargin     *decimal.Decimal `json:"gross_margin,omitempty"`
	OperatingMargin *decimal.Decimal `json:"operating_margin,omitempty"`
	NetMargin       *decimal.Decimal `json:"net_margin,omitempty"`
	FreeCashFlow    *decimal.Decimal `json:"free_cash_flow,omitempty"`
	DebtRatio       *decimal.Decimal `json:"debt_ratio,omitempty"`
	CurrentRatio    *decimal.Decimal `json:"current_ratio,omitempty"`
}

// FilingSummary is one entry of the recent-filings list
type FilingSummary struct {
	Form      string    `json:"form"`
	FiledAt   time.Time `json:"filed_at"`
	Accession string    `json:"accession"`
	URL       string    `json:"url"`
}

// FilingsRecord is the normalized result of extracting one company facts document
type FilingsRecord struct {
	CIK           string                `json:"cik"`
	EntityName    string                `json:"entity_name,omitempty"`
	Currency      string                `json:"currency"`
	Metrics       map[Metric]MetricPair `json:"metrics"`
	Derived       DerivedMetrics        `json:"derived"`
	RecentFilings []FilingSummary       `json:"recent_filings,omitempty"`
	Diagnostics   []string              `json:"diagnostics,omitempty"`
}

// Get returns the pair for metric; absent metrics yield an empty pair
func (r *FilingsRecord) Get(metric Metric) MetricPair {
	if r == nil || r.Metrics == nil {
		return MetricPair{}
	}
	return r.Metrics[metric]
}

// Annual returns the annual value of metric, or nil
func (r *FilingsRecord) Annual(metric Metric) *MetricValue {
	return r.Get(metric).Annual
}

// Quarterly returns the quarterly value of metric, or nil
func (r *FilingsRecord) Quarterly(metric Metric) *MetricValue {
	return r.Get(metric).Quarterly
}

// IsEmpty reports whether no metric produced any value
func (r *FilingsRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	for _, pair := range r.Metrics {
		if !pair.IsEmpty() {
			return false
		}
	}
	return true
}
