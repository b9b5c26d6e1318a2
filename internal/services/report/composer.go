// Package report merges quote and filings results into the three-section report
// payload and builds the narrative prompt.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

// Notices shown in place of a section body
const (
	NoticeQuoteNoData         = "No market data for this symbol."
	NoticeQuoteUnavailable    = "Quote source unavailable, try again later."
	NoticeFilingsNotFound     = "No SEC filings for this CIK (not a domestic filer)."
	NoticeFilingsUnavailable  = "SEC filings fetch failed."
	NoticeFilingsEmpty        = "No standard financial metrics in the SEC filings."
	NoticeNarrativeDisabled   = "AI analysis is disabled."
	NoticeNarrativeFailed     = "AI analysis unavailable."
	NoticeNarrativeNoData     = "Not enough data for an AI analysis."
	NarrativeFooter           = "AI generated from Finnhub and SEC EDGAR data · Not investment advice"
	DefaultNarrativeTimeout   = 60 * time.Second
	defaultNarrativeMaxTokens = 1200
)

// Options shape the composed report
type Options struct {
	Language         string
	MaxWords         int
	MaxTokens        int
	NarrativeTimeout time.Duration
}

// Composer builds report payloads. It holds no per-entity state and is safe for concurrent use.
type Composer struct {
	narrative interfaces.NarrativeService // nil disables the narrative
	logger    arbor.ILogger
	opts      Options
	now       func() time.Time
}

// NewComposer creates a composer. narrative may be nil.
func NewComposer(narrative interfaces.NarrativeService, logger arbor.ILogger, opts Options) *Composer {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = DefaultMaxWords
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultNarrativeMaxTokens
	}
	if opts.NarrativeTimeout <= 0 {
		opts.NarrativeTimeout = DefaultNarrativeTimeout
	}
	return &Composer{
		narrative: narrative,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Compose assembles the three sections for entity. Each section degrades on its own:
// a failed quote still yields the filings and narrative sections.
func (c *Composer) Compose(ctx context.Context, entity models.TrackedEntity, quote models.QuoteResult, filings models.FilingsResult) *models.ReportPayload {
	now := c.now().UTC()

	payload := &models.ReportPayload{
		Entity:      entity,
		GeneratedAt: now,
		Quote:       c.QuoteSection(entity, quote, now),
		Filings:     c.FilingsSection(entity, filings),
	}
	payload.Narrative, payload.Prompt = c.narrativeSection(ctx, entity, quote, filings, now)

	return payload
}

// QuoteSection renders a quote result. The section is always present.
func (c *Composer) QuoteSection(entity models.TrackedEntity, result models.QuoteResult, now time.Time) models.Section {
	section := models.Section{
		Kind:  models.SectionQuote,
		Title: "Market data · " + entity.DisplayName(),
	}

	if result.Status == models.QuoteAvailable && result.Record == nil {
		result.Status = models.QuoteNoData
	}

	switch result.Status {
	case models.QuoteAvailable:
	case models.QuoteNoData:
		section.Status = models.SectionNoData
		section.Notice = NoticeQuoteNoData
		return section
	default:
		section.Status = models.SectionUnavailable
		section.Notice = NoticeQuoteUnavailable
		return section
	}

	r := result.Record
	section.Status = models.SectionOK
	cur := r.Currency
	if cur == "" {
		cur = entity.Currency
	}

	if r.Profile != nil {
		if r.Profile.Name != "" && entity.Name == "" {
			section.Title = fmt.Sprintf("Market data · %s (%s)", r.Profile.Name, entity.Ticker)
		}
		section.Body = r.Profile.Description
	}

	fields := &fieldList{}

	fields.in("Price").float("Price", r.Price, with(cur, formatPrice))
	fields.float("Change", r.ChangePercent, formatChange)
	fields.float("Open", r.Open, with(cur, formatPrice))
	fields.float("High", r.DayHigh, with(cur, formatPrice))
	fields.float("Low", r.DayLow, with(cur, formatPrice))

	fields.in("Valuation").float("Market cap", r.MarketCap, with(cur, formatAmount))
	fields.float("P/E", r.PE, formatNumber)
	fields.float("Forward P/E", r.ForwardPE, formatNumber)
	fields.float("EPS", r.EPS, formatNumber)
	fields.float("P/B", r.PB, formatNumber)
	fields.float("P/S", r.PS, formatNumber)
	fields.float("EV/EBITDA", r.EVToEBITDA, formatNumber)

	fields.in("Margins").float("Gross", r.GrossMargin, formatPercent)
	fields.float("Operating", r.OperatingMargin, formatPercent)
	fields.float("Net", r.NetMargin, formatPercent)

	fields.in("Returns").float("ROE", r.ROE, formatPercent)
	fields.float("ROA", r.ROA, formatPercent)
	fields.float("ROIC", r.ROIC, formatPercent)

	fields.in("Balance").float("Debt/Equity", r.DebtToEquity, formatNumber)
	fields.float("Current ratio", r.CurrentRatio, formatMultiple)
	fields.float("Quick ratio", r.QuickRatio, formatMultiple)

	fields.in("52 weeks").float("High", r.High52W, with(cur, formatPrice))
	fields.float("Low", r.Low52W, with(cur, formatPrice))
	fields.float("Return", r.Return52W, formatPercent)

	fields.in("Dividend · Risk").float("Dividend yield", r.DividendYield, formatPercent)
	fields.float("Beta", r.Beta, formatNumber)
	fields.float("FCF yield", r.FCFYield, formatPercent)
	fields.float("Avg volume", r.AverageVolume, with("", formatAmount))

	fields.in("Growth (5y)").float("Revenue", r.RevenueGrowth5Y, formatPercent)
	fields.float("EPS", r.EPSGrowth5Y, formatPercent)

	if rec := r.Recommendation; rec != nil && rec.Total() > 0 {
		fields.in("Analysts").add("Consensus", rec.Consensus)
		fields.add("Votes", fmt.Sprintf("SB:%d B:%d H:%d S:%d SS:%d", rec.StrongBuy, rec.Buy, rec.Hold, rec.Sell, rec.StrongSell))
	}
	if pt := r.PriceTarget; pt != nil {
		fields.in("Price target").float("Mean", pt.Mean, with(cur, formatPrice))
		fields.float("High", pt.High, with(cur, formatPrice))
		fields.float("Low", pt.Low, with(cur, formatPrice))
	}
	if p := r.Profile; p != nil {
		fields.in("Profile").add("Industry", p.Industry)
		fields.add("Country", p.Country)
		fields.add("Exchange", p.Exchange)
		if p.Employees.Valid {
			fields.add("Employees", fmt.Sprintf("%d", p.Employees.Int64))
		}
		if p.Website != "" {
			section.Links = append(section.Links, models.Link{Title: "Website", URL: p.Website})
		}
	}

	section.Fields = fields.fields
	fetched := r.FetchedAt
	if fetched.IsZero() {
		fetched = now
	}
	section.Footer = "Source: Finnhub · " + fetched.UTC().Format(timestampLayout)
	return section
}

// filingsRows lays out the filings fields: group, label, metric
var filingsRows = []struct {
	group  string
	label  string
	metric models.Metric
}{
	{"Income statement", "Revenue", models.MetricRevenue},
	{"Income statement", "Gross profit", models.MetricGrossProfit},
	{"Income statement", "Operating income", models.MetricOperatingIncome},
	{"Income statement", "Net income", models.MetricNetIncome},
	{"Per share", "EPS diluted", models.MetricEPSDiluted},
	{"Per share", "EPS basic", models.MetricEPSBasic},
	{"Balance sheet", "Total assets", models.MetricTotalAssets},
	{"Balance sheet", "Total liabilities", models.MetricTotalLiabilities},
	{"Balance sheet", "Equity", models.MetricStockholdersEquity},
	{"Balance sheet", "Shares outstanding", models.MetricSharesOutstanding},
	{"Liquidity · Debt", "Cash", models.MetricCash},
	{"Liquidity · Debt", "Long-term debt", models.MetricLongTermDebt},
	{"Liquidity · Debt", "Current assets", models.MetricCurrentAssets},
	{"Liquidity · Debt", "Current liabilities", models.MetricCurrentLiabilities},
	{"Cash flow", "Operating cash flow", models.MetricOperatingCashFlow},
	{"Cash flow", "Capex", models.MetricCapex},
	{"Cash flow", "Dividends paid", models.MetricDividendsPaid},
}

// FilingsSection renders a filings result. Entities without a CIK get an omitted section.
func (c *Composer) FilingsSection(entity models.TrackedEntity, result models.FilingsResult) models.Section {
	section := models.Section{
		Kind:  models.SectionFilings,
		Title: "SEC filings · " + entity.DisplayName(),
	}

	if result.Status == models.FilingsAvailable && result.Record == nil {
		result.Status = models.FilingsUnavailable
	}

	switch result.Status {
	case models.FilingsAvailable:
	case models.FilingsNotApplicable:
		section.Status = models.SectionOmitted
		return section
	case models.FilingsNotFound:
		section.Status = models.SectionNoData
		section.Notice = NoticeFilingsNotFound
		return section
	default:
		section.Status = models.SectionUnavailable
		section.Notice = NoticeFilingsUnavailable
		return section
	}

	r := result.Record
	section.Status = models.SectionOK
	if r.EntityName != "" {
		section.Title = "SEC filings · " + r.EntityName
	}

	fields := &fieldList{}
	for _, row := range filingsRows {
		fields.in(row.group).add(row.label, metricPairText(r.Get(row.metric)))
	}

	d := r.Derived
	fields.in("Ratios")
	if d.GrossMargin != nil {
		fields.add("Gross margin", formatDecimalPercent(*d.GrossMargin))
	}
	if d.OperatingMargin != nil {
		fields.add("Operating margin", formatDecimalPercent(*d.OperatingMargin))
	}
	if d.NetMargin != nil {
		fields.add("Net margin", formatDecimalPercent(*d.NetMargin))
	}
	if d.FreeCashFlow != nil {
		fields.add("Free cash flow", formatDecimal(*d.FreeCashFlow, r.Currency))
	}
	if d.DebtRatio != nil {
		fields.add("Debt ratio", formatDecimalPercent(*d.DebtRatio))
	}
	if d.CurrentRatio != nil {
		fields.add("Current ratio", d.CurrentRatio.StringFixed(2)+"×")
	}
	section.Fields = fields.fields

	if r.IsEmpty() {
		section.Notice = NoticeFilingsEmpty
	}

	for _, f := range r.RecentFilings {
		section.Links = append(section.Links, models.Link{
			Title: fmt.Sprintf("%s · %s", f.Form, formatDate(f.FiledAt)),
			URL:   f.URL,
		})
	}

	footer := "Source: SEC EDGAR companyfacts · CIK " + r.CIK
	if rev := r.Annual(models.MetricRevenue); rev != nil {
		footer += " · FY ending " + formatDate(rev.PeriodEnd)
	}
	section.Footer = footer
	return section
}

// metricPairText renders "annual (FY to end) / quarterly (Q to end)", skipping absent sides
func metricPairText(pair models.MetricPair) string {
	var parts []string
	if v := pair.Annual; v != nil {
		parts = append(parts, fmt.Sprintf("%s (FY %s)", formatDecimal(v.Value, v.Unit), formatDate(v.PeriodEnd)))
	}
	if v := pair.Quarterly; v != nil {
		parts = append(parts, fmt.Sprintf("%s (Q %s)", formatDecimal(v.Value, v.Unit), formatDate(v.PeriodEnd)))
	}
	return strings.Join(parts, " / ")
}

func (c *Composer) narrativeSection(ctx context.Context, entity models.TrackedEntity, quote models.QuoteResult, filings models.FilingsResult, now time.Time) (models.Section, string) {
	section := models.Section{
		Kind:  models.SectionNarrative,
		Title: "AI analysis · " + entity.DisplayName(),
	}

	if c.narrative == nil {
		section.Status = models.SectionUnavailable
		section.Notice = NoticeNarrativeDisabled
		return section, ""
	}

	if quote.Status != models.QuoteAvailable && filings.Status != models.FilingsAvailable {
		section.Status = models.SectionNoData
		section.Notice = NoticeNarrativeNoData
		return section, ""
	}

	prompt := BuildPrompt(entity, quote, filings, PromptOptions{
		Language: c.opts.Language,
		MaxWords: c.opts.MaxWords,
	}, now)

	genCtx, cancel := context.WithTimeout(ctx, c.opts.NarrativeTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.narrative.Generate(genCtx, prompt, c.opts.MaxTokens)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", common.ErrNarrativeFailure, entity.Ticker, err)
		c.logger.Warn().
			Err(err).
			Str("ticker", entity.Ticker).
			Dur("elapsed", time.Since(start)).
			Msg("Narrative generation failed")
		section.Status = models.SectionUnavailable
		section.Notice = NoticeNarrativeFailed
		return section, prompt
	}

	c.logger.Debug().
		Str("ticker", entity.Ticker).
		Int("length", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Narrative generated")

	section.Status = models.SectionOK
	section.Body = text
	section.Footer = NarrativeFooter
	return section, prompt
}
