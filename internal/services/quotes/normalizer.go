// Package quotes turns raw quote-source snapshots into normalized quote records.
package quotes

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/guregu/null/v6"
	"github.com/ternarybob/finbot/internal/finnhub"
	"github.com/ternarybob/finbot/internal/models"
)

// maxDescriptionRunes caps the profile description carried into reports and prompts
const maxDescriptionRunes = 450

// Normalize converts a raw snapshot into a QuoteResult. It never fails: missing or
// malformed fields are left invalid. A snapshot without a price yields QuoteNoData.
func Normalize(raw *finnhub.Snapshot, currency string) models.QuoteResult {
	if raw == nil || raw.Quote.IsEmpty() {
		return models.QuoteResult{Status: models.QuoteNoData}
	}

	q := raw.Quote
	m := raw.Metrics

	record := &models.QuoteRecord{
		Symbol:    raw.Symbol,
		Currency:  currency,
		FetchedAt: raw.FetchedAt,

		Price:         floatPtr(q.Current),
		PreviousClose: floatPtr(q.PreviousClose),
		Open:          nonZero(floatPtr(q.Open)),
		DayHigh:       nonZero(floatPtr(q.High)),
		DayLow:        nonZero(floatPtr(q.Low)),
		Change:        floatPtr(q.Change),
		ChangePercent: percent(floatPtr(q.PercentChange)),

		MarketCap:  scaled(metric(m, "marketCapitalization"), 1e6),
		PE:         metric(m, "peBasicExclExtraTTM", "peTTM"),
		ForwardPE:  metric(m, "forwardPE"),
		EPS:        metric(m, "epsBasicExclExtraAnnual", "epsTTM"),
		PB:         metric(m, "pbAnnual", "pbQuarterly"),
		PS:         metric(m, "psTTM", "psAnnual"),
		EVToEBITDA: metric(m, "evToEbitda"),

		GrossMargin:     percent(metric(m, "grossMarginAnnual", "grossMarginTTM")),
		OperatingMargin: percent(metric(m, "operatingMarginAnnual", "operatingMarginTTM")),
		NetMargin:       percent(metric(m, "netMarginAnnual", "netProfitMarginAnnual", "netProfitMarginTTM")),
		ROE:             percent(metric(m, "roeAnnual", "roeTTM")),
		ROA:             percent(metric(m, "roaAnnual", "roaTTM")),
		ROIC:            percent(metric(m, "roicAnnual", "roiAnnual")),

		DebtToEquity: metric(m, "totalDebt/totalEquityAnnual", "longTermDebt/equityAnnual"),
		CurrentRatio: metric(m, "currentRatioAnnual", "currentRatioQuarterly"),
		QuickRatio:   metric(m, "quickRatioAnnual", "quickRatioQuarterly"),

		FCFYield:        percent(metric(m, "fcfYieldTTM")),
		RevenueGrowth5Y: percent(metric(m, "revenueGrowth5Y")),
		EPSGrowth5Y:     percent(metric(m, "epsGrowth5Y")),

		DividendYield: percent(metric(m, "dividendYieldIndicatedAnnual", "currentDividendYieldTTM")),
		Beta:          metric(m, "beta"),
		High52W:       metric(m, "52WeekHigh"),
		Low52W:        metric(m, "52WeekLow"),
		Return52W:     percent(metric(m, "52WeekPriceReturnDaily")),
		AverageVolume: scaled(metric(m, "10DayAverageTradingVolume", "3MonthAverageTradingVolume"), 1e6),
	}

	// Derive the day move when the source omitted it
	if record.PreviousClose.Valid && record.PreviousClose.Float64 != 0 {
		if !record.Change.Valid {
			record.Change = null.FloatFrom(record.Price.Float64 - record.PreviousClose.Float64)
		}
		if !record.ChangePercent.Valid {
			record.ChangePercent = null.FloatFrom((record.Price.Float64 - record.PreviousClose.Float64) / record.PreviousClose.Float64)
		}
	}

	if raw.Profile != nil {
		if !record.MarketCap.Valid {
			record.MarketCap = scaled(floatPtr(raw.Profile.MarketCap), 1e6)
		}
		record.Profile = normalizeProfile(raw.Profile)
		if record.Currency == "" {
			record.Currency = strings.ToUpper(raw.Profile.Currency)
		}
	}

	record.Recommendation = normalizeRecommendation(raw.Recommendations)
	record.PriceTarget = normalizePriceTarget(raw.PriceTarget)

	return models.QuoteResult{Status: models.QuoteAvailable, Record: record}
}

func normalizeProfile(p *finnhub.Profile) *models.CompanyProfile {
	profile := &models.CompanyProfile{
		Name:        strings.TrimSpace(p.Name),
		Industry:    p.Industry,
		Country:     p.Country,
		Exchange:    p.Exchange,
		IPO:         p.IPO,
		Website:     p.WebURL,
		Description: truncateRunes(strings.TrimSpace(p.Description), maxDescriptionRunes),
	}
	if p.EmployeeTotal != nil && isFinite(*p.EmployeeTotal) && *p.EmployeeTotal > 0 {
		profile.Employees = null.IntFrom(int64(*p.EmployeeTotal))
	}
	if *profile == (models.CompanyProfile{}) {
		return nil
	}
	return profile
}

// consensusOrder resolves ties towards the first bucket
var consensusOrder = []string{"STRONG BUY", "BUY", "HOLD", "SELL", "STRONG SELL"}

func normalizeRecommendation(trends []finnhub.RecommendationTrend) *models.Recommendation {
	if len(trends) == 0 {
		return nil
	}

	// Newest period first regardless of source ordering
	sorted := make([]finnhub.RecommendationTrend, len(trends))
	copy(sorted, trends)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Period > sorted[j].Period })
	latest := sorted[0]

	rec := &models.Recommendation{
		Period:     latest.Period,
		StrongBuy:  latest.StrongBuy,
		Buy:        latest.Buy,
		Hold:       latest.Hold,
		Sell:       latest.Sell,
		StrongSell: latest.StrongSell,
	}
	if rec.Total() == 0 {
		return rec
	}

	counts := []int64{rec.StrongBuy, rec.Buy, rec.Hold, rec.Sell, rec.StrongSell}
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	rec.Consensus = consensusOrder[best]
	return rec
}

func normalizePriceTarget(p *finnhub.PriceTarget) *models.PriceTarget {
	if p == nil {
		return nil
	}
	target := &models.PriceTarget{
		Mean: nonZero(floatPtr(p.TargetMean)),
		High: nonZero(floatPtr(p.TargetHigh)),
		Low:  nonZero(floatPtr(p.TargetLow)),
	}
	if target.IsEmpty() {
		return nil
	}
	return target
}

// metric returns the first key holding a finite number. Non-numeric values count as absent.
func metric(m map[string]interface{}, keys ...string) null.Float {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		f, ok := v.(float64)
		if !ok || !isFinite(f) {
			continue
		}
		return null.FloatFrom(f)
	}
	return null.Float{}
}

func floatPtr(p *float64) null.Float {
	if p == nil || !isFinite(*p) {
		return null.Float{}
	}
	return null.FloatFrom(*p)
}

// nonZero treats 0 as absent for fields where Finnhub uses 0 as "no value"
func nonZero(f null.Float) null.Float {
	if f.Valid && f.Float64 == 0 {
		return null.Float{}
	}
	return f
}

func percent(f null.Float) null.Float {
	return scaled(f, 0.01)
}

func scaled(f null.Float, factor float64) null.Float {
	if !f.Valid {
		return f
	}
	return null.FloatFrom(f.Float64 * factor)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
