package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	DefaultLanguage = "English"
	DefaultMaxWords = 520
)

// PromptOptions shape the narrative instructions
type PromptOptions struct {
	Language string
	MaxWords int
}

// BuildPrompt serializes the present quote and filings fields into the fixed narrative
// template. The output depends only on its arguments.
func BuildPrompt(entity models.TrackedEntity, quote models.QuoteResult, filings models.FilingsResult, opts PromptOptions, asOf time.Time) string {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are a CFA financial analyst. Write a concise, professional report in %s based only on the data below. Do not add information that is not in the data.\n\n", opts.Language)

	var record *models.QuoteRecord
	if quote.Status == models.QuoteAvailable {
		record = quote.Record
	}

	writeCompany(&b, entity, record)
	writeMarket(&b, entity, quote, record)
	writeFilings(&b, filings)

	b.WriteString(`
Write the report with these headings:

📋 **SUMMARY**
[2-3 sentences: the most important results and the trend]

💰 **PROFITABILITY & REVENUE**
[Margins, growth, quality of earnings]

🏦 **BALANCE SHEET**
[Assets, debt, liquidity]

💸 **CASH FLOWS**
[CFO, capex, FCF: does the company generate cash?]

⚠️ **RISKS**
[3-4 bullet points with •]

🔭 **OUTLOOK**
[Short and medium term view]

⚖️ **VERDICT: [POSITIVE / NEUTRAL / NEGATIVE / SPECULATIVE]**
[Who is this company suitable for?]

---
`)
	fmt.Fprintf(&b, "*Data: Finnhub + SEC EDGAR · %s · Not investment advice*\n\n", asOf.UTC().Format(timestampLayout))
	fmt.Fprintf(&b, "Max %d words. Write in %s. Do not invent numbers.", opts.MaxWords, opts.Language)

	return b.String()
}

func writeCompany(b *strings.Builder, entity models.TrackedEntity, record *models.QuoteRecord) {
	name := entity.Name
	var profile *models.CompanyProfile
	if record != nil {
		profile = record.Profile
	}
	if name == "" && profile != nil {
		name = profile.Name
	}
	if name == "" {
		name = entity.Ticker
	}

	parts := []string{fmt.Sprintf("COMPANY: %s (%s)", name, entity.Ticker)}
	if profile != nil {
		if profile.Industry != "" {
			parts = append(parts, "Industry: "+profile.Industry)
		}
		if profile.Country != "" {
			parts = append(parts, "Country: "+profile.Country)
		}
	}
	b.WriteString(strings.Join(parts, " | "))
	b.WriteString("\n")

	if profile != nil && profile.Description != "" {
		b.WriteString("DESCRIPTION: " + profile.Description + "\n")
	}
	b.WriteString("\n")
}

// line joins the present parts of one prompt line; a line with no parts is dropped
type line []string

func (l *line) float(label string, v null.Float, format func(float64) string) {
	if v.Valid {
		*l = append(*l, label+": "+format(v.Float64))
	}
}

func (l *line) text(label, v string) {
	if v != "" {
		*l = append(*l, label+": "+v)
	}
}

func (l line) write(b *strings.Builder) {
	if len(l) == 0 {
		return
	}
	b.WriteString("- " + strings.Join(l, " | ") + "\n")
}

func writeMarket(b *strings.Builder, entity models.TrackedEntity, quote models.QuoteResult, r *models.QuoteRecord) {
	if r == nil {
		if quote.Status == models.QuoteNoData {
			b.WriteString("MARKET DATA: no market data for this symbol.\n")
		} else {
			b.WriteString("MARKET DATA: unavailable.\n")
		}
		return
	}

	cur := r.Currency
	if cur == "" {
		cur = entity.Currency
	}
	price := with(cur, formatPrice)
	amount := with(cur, formatAmount)
	signed := func(v float64) string { return fmt.Sprintf("%+.2f%%", v*100) }

	b.WriteString("MARKET DATA (Finnhub):\n")

	var l line
	l.float("Price", r.Price, price)
	l.float("Change", r.ChangePercent, signed)
	l.write(b)

	l = nil
	l.float("Market cap", r.MarketCap, amount)
	l.write(b)

	l = nil
	l.float("P/E", r.PE, formatNumber)
	l.float("Fwd P/E", r.ForwardPE, formatNumber)
	l.float("EV/EBITDA", r.EVToEBITDA, formatNumber)
	l.float("P/B", r.PB, formatNumber)
	l.float("P/S", r.PS, formatNumber)
	l.write(b)

	l = nil
	l.float("Gross margin", r.GrossMargin, formatPercent)
	l.float("Operating margin", r.OperatingMargin, formatPercent)
	l.float("Net margin", r.NetMargin, formatPercent)
	l.write(b)

	l = nil
	l.float("ROE", r.ROE, formatPercent)
	l.float("ROA", r.ROA, formatPercent)
	l.float("ROIC", r.ROIC, formatPercent)
	l.write(b)

	l = nil
	l.float("D/E", r.DebtToEquity, formatNumber)
	l.float("Current ratio", r.CurrentRatio, formatNumber)
	l.float("FCF yield", r.FCFYield, formatPercent)
	l.write(b)

	l = nil
	l.float("Beta", r.Beta, formatNumber)
	l.float("Dividend yield", r.DividendYield, formatPercent)
	l.write(b)

	l = nil
	l.float("52w high", r.High52W, price)
	l.float("52w low", r.Low52W, price)
	l.float("52w return", r.Return52W, formatPercent)
	l.write(b)

	l = nil
	l.float("Revenue growth 5y", r.RevenueGrowth5Y, formatPercent)
	l.float("EPS growth 5y", r.EPSGrowth5Y, formatPercent)
	l.write(b)

	if pt := r.PriceTarget; pt != nil {
		l = nil
		l.float("Analyst target mean", pt.Mean, price)
		l.float("high", pt.High, price)
		l.float("low", pt.Low, price)
		l.write(b)
	}

	if rec := r.Recommendation; rec != nil && rec.Total() > 0 {
		fmt.Fprintf(b, "- Recommendations: Strong Buy: %d | Buy: %d | Hold: %d | Sell: %d | Strong Sell: %d | Consensus: %s\n",
			rec.StrongBuy, rec.Buy, rec.Hold, rec.Sell, rec.StrongSell, rec.Consensus)
	}
}

func writeFilings(b *strings.Builder, filings models.FilingsResult) {
	switch {
	case filings.Status == models.FilingsAvailable && filings.Record != nil:
	case filings.Status == models.FilingsNotApplicable, filings.Status == models.FilingsNotFound:
		b.WriteString("\nSEC FILINGS: not available (ETF or foreign listing), market data only.\n")
		return
	default:
		b.WriteString("\nSEC FILINGS: could not be retrieved, market data only.\n")
		return
	}

	r := filings.Record
	b.WriteString("\nSEC FILINGS (10-K/10-Q, latest annual and quarterly):\n")

	for _, row := range filingsRows {
		if text := metricPairText(r.Get(row.metric)); text != "" {
			fmt.Fprintf(b, "- %s: %s\n", row.label, text)
		}
	}

	d := r.Derived
	var l line
	if d.GrossMargin != nil {
		l.text("Gross margin", formatDecimalPercent(*d.GrossMargin))
	}
	if d.OperatingMargin != nil {
		l.text("Operating margin", formatDecimalPercent(*d.OperatingMargin))
	}
	if d.NetMargin != nil {
		l.text("Net margin", formatDecimalPercent(*d.NetMargin))
	}
	l.write(b)

	l = nil
	if d.FreeCashFlow != nil {
		l.text("FCF", formatDecimal(*d.FreeCashFlow, r.Currency))
	}
	if d.DebtRatio != nil {
		l.text("Debt ratio", formatDecimalPercent(*d.DebtRatio))
	}
	if d.CurrentRatio != nil {
		l.text("Current ratio", d.CurrentRatio.StringFixed(2))
	}
	l.write(b)
}
