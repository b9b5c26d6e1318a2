package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// QuoteStatus distinguishes a usable quote from the two failure shapes
type QuoteStatus string

const (
	QuoteAvailable   QuoteStatus = "available"
	QuoteNoData      QuoteStatus = "no_data"     // source answered but knows nothing about the symbol
	QuoteUnavailable QuoteStatus = "unavailable" // fetch failed or timed out
)

// QuoteResult is the outcome of one quote lookup
type QuoteResult struct {
	Status QuoteStatus  `json:"status"`
	Record *QuoteRecord `json:"record,omitempty"`
	Err    error        `json:"-"`
}

// Error returns the failure text, or "" for a usable result
func (r QuoteResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// QuoteRecord is the normalized market snapshot. Every field is independently optional.
// Ratios and percentages are fractions (0.125 = 12.5%); amounts are in the quote currency.
type QuoteRecord struct {
	Symbol    string    `json:"symbol"`
	Currency  string    `json:"currency"`
	FetchedAt time.Time `json:"fetched_at"`

	// Price
	Price         null.Float `json:"price"`
	Change        null.Float `json:"change"`
	ChangePercent null.Float `json:"change_percent"`
	PreviousClose null.Float `json:"previous_close"`
	Open          null.Float `json:"open"`
	DayHigh       null.Float `json:"day_high"`
	DayLow        null.Float `json:"day_low"`

	// Valuation
	MarketCap  null.Float `json:"market_cap"`
	PE         null.Float `json:"pe"`
	ForwardPE  null.Float `json:"forward_pe"`
	EPS        null.Float `json:"eps"`
	PB         null.Float `json:"pb"`
	PS         null.Float `json:"ps"`
	EVToEBITDA null.Float `json:"ev_to_ebitda"`

	// Profitability
	GrossMargin     null.Float `json:"gross_margin"`
	OperatingMargin null.Float `json:"operating_margin"`
	NetMargin       null.Float `json:"net_margin"`
	ROE             null.Float `json:"roe"`
	ROA             null.Float `json:"roa"`
	ROIC            null.Float `json:"roic"`

	// Leverage and liquidity
	DebtToEquity null.Float `json:"debt_to_equity"`
	CurrentRatio null.Float `json:"current_ratio"`
	QuickRatio   null.Float `json:"quick_ratio"`

	// Cash flow and growth
	FCFYield        null.Float `json:"fcf_yield"`
	RevenueGrowth5Y null.Float `json:"revenue_growth_5y"`
	EPSGrowth5Y     null.Float `json:"eps_growth_5y"`

	// Dividend, risk, range
	DividendYield null.Float `json:"dividend_yield"`
	Beta          null.Float `json:"beta"`
	High52W       null.Float `json:"high_52w"`
	Low52W        null.Float `json:"low_52w"`
	Return52W     null.Float `json:"return_52w"`
	AverageVolume null.Float `json:"average_volume"`

	Recommendation *Recommendation `json:"recommendation,omitempty"`
	PriceTarget    *PriceTarget    `json:"price_target,omitempty"`
	Profile        *CompanyProfile `json:"profile,omitempty"`
}

// Recommendation is the latest analyst recommendation trend
type Recommendation struct {
	Period     string `json:"period,omitempty"`
	StrongBuy  int64  `json:"strong_buy"`
	Buy        int64  `json:"buy"`
	Hold       int64  `json:"hold"`
	Sell       int64  `json:"sell"`
	StrongSell int64  `json:"strong_sell"`
	Consensus  string `json:"consensus,omitempty"` // empty when no analyst covers the symbol
}

// Total returns the number of analyst opinions
func (r Recommendation) Total() int64 {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// PriceTarget is the analyst price target range
type PriceTarget struct {
	Mean null.Float `json:"mean"`
	High null.Float `json:"high"`
	Low  null.Float `json:"low"`
}

// IsEmpty reports whether no target value is present
func (p PriceTarget) IsEmpty() bool {
	return !p.Mean.Valid && !p.High.Valid && !p.Low.Valid
}

// CompanyProfile is descriptive company data from the quote source
type CompanyProfile struct {
	Name        string   `json:"name,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Country     string   `json:"country,omitempty"`
	Exchange    string   `json:"exchange,omitempty"`
	IPO         string   `json:"ipo,omitempty"`
	Employees   null.Int `json:"employees"`
	Website     string   `json:"website,omitempty"`
	Description string   `json:"description,omitempty"`
}
