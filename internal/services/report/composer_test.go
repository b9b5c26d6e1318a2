package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/models"
)

// mockNarrative implements interfaces.NarrativeService
type mockNarrative struct {
	text      string
	err       error
	prompts   []string
	maxTokens int
}

func (m *mockNarrative) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.maxTokens = maxTokens
	return m.text, m.err
}

var (
	fixedNow = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	nvda = models.TrackedEntity{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"}
	spy  = models.TrackedEntity{Ticker: "SPY", Currency: "USD", Name: "SPDR S&P 500 ETF"}
)

func newTestComposer(narrative *mockNarrative) *Composer {
	var c *Composer
	if narrative == nil {
		c = NewComposer(nil, arbor.NewLogger(), Options{MaxTokens: 800})
	} else {
		c = NewComposer(narrative, arbor.NewLogger(), Options{MaxTokens: 800})
	}
	c.now = func() time.Time { return fixedNow }
	return c
}

func availableQuote() models.QuoteResult {
	return models.QuoteResult{
		Status: models.QuoteAvailable,
		Record: &models.QuoteRecord{
			Symbol:        "NVDA",
			Currency:      "USD",
			FetchedAt:     fixedNow,
			Price:         null.FloatFrom(120.5),
			ChangePercent: null.FloatFrom(0.0212),
			MarketCap:     null.FloatFrom(2.96e12),
			PE:            null.FloatFrom(55.2),
			GrossMargin:   null.FloatFrom(0.727),
			Recommendation: &models.Recommendation{
				Period: "2025-06-01", StrongBuy: 25, Buy: 25, Hold: 4, Sell: 1, Consensus: "STRONG BUY",
			},
			Profile: &models.CompanyProfile{
				Name:        "NVIDIA Corp",
				Industry:    "Semiconductors",
				Country:     "US",
				Description: "Designs GPUs.",
				Website:     "https://www.nvidia.com",
			},
		},
	}
}

func availableFilings() models.FilingsResult {
	start := time.Date(2023, 1, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC)
	gm := decimal.RequireFromString("0.7269")
	return models.FilingsResult{
		Status: models.FilingsAvailable,
		Record: &models.FilingsRecord{
			CIK:        "0001045810",
			EntityName: "NVIDIA CORP",
			Currency:   "USD",
			Metrics: map[models.Metric]models.MetricPair{
				models.MetricRevenue: {Annual: &models.MetricValue{
					Value: decimal.NewFromInt(60922000000), Unit: "USD", Concept: "Revenues",
					PeriodStart: &start, PeriodEnd: end, Form: "10-K",
				}},
				models.MetricEPSDiluted: {Annual: &models.MetricValue{
					Value: decimal.RequireFromString("11.93"), Unit: "USD/shares", PeriodStart: &start, PeriodEnd: end,
				}},
			},
			Derived: models.DerivedMetrics{GrossMargin: &gm},
			RecentFilings: []models.FilingSummary{
				{Form: "10-K", FiledAt: time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC), URL: "https://www.sec.gov/Archives/edgar/data/1045810/000104581024000029/"},
			},
		},
	}
}

func fieldValue(section models.Section, group, name string) string {
	for _, f := range section.Fields {
		if f.Group == group && f.Name == name {
			return f.Value
		}
	}
	return ""
}

func TestCompose_AllSectionsAvailable(t *testing.T) {
	narrative := &mockNarrative{text: "📋 **SUMMARY**\nStrong quarter."}
	c := newTestComposer(narrative)

	payload := c.Compose(context.Background(), nvda, availableQuote(), availableFilings())
	require.NotNil(t, payload)
	assert.Equal(t, fixedNow, payload.GeneratedAt)
	assert.Len(t, payload.Sections(), 3)

	assert.Equal(t, models.SectionOK, payload.Quote.Status)
	assert.Equal(t, "120.50 USD", fieldValue(payload.Quote, "Price", "Price"))
	assert.Equal(t, "▲ +2.12%", fieldValue(payload.Quote, "Price", "Change"))
	assert.Equal(t, "2.96T USD", fieldValue(payload.Quote, "Valuation", "Market cap"))
	assert.Equal(t, "72.7%", fieldValue(payload.Quote, "Margins", "Gross"))
	assert.Equal(t, "STRONG BUY", fieldValue(payload.Quote, "Analysts", "Consensus"))
	assert.Empty(t, fieldValue(payload.Quote, "Valuation", "Forward P/E"), "absent fields are not rendered")
	assert.Equal(t, "Designs GPUs.", payload.Quote.Body)

	assert.Equal(t, models.SectionOK, payload.Filings.Status)
	assert.Equal(t, "SEC filings · NVIDIA CORP", payload.Filings.Title)
	assert.Equal(t, "60.92B USD (FY 2024-01-28)", fieldValue(payload.Filings, "Income statement", "Revenue"))
	assert.Equal(t, "11.93 USD/share (FY 2024-01-28)", fieldValue(payload.Filings, "Per share", "EPS diluted"))
	assert.Equal(t, "72.7%", fieldValue(payload.Filings, "Ratios", "Gross margin"))
	require.Len(t, payload.Filings.Links, 1)
	assert.Equal(t, "10-K · 2024-02-21", payload.Filings.Links[0].Title)

	assert.Equal(t, models.SectionOK, payload.Narrative.Status)
	assert.Equal(t, "📋 **SUMMARY**\nStrong quarter.", payload.Narrative.Body)
	assert.Equal(t, NarrativeFooter, payload.Narrative.Footer)
	assert.Equal(t, 800, narrative.maxTokens)
	require.Len(t, narrative.prompts, 1)
	assert.Equal(t, payload.Prompt, narrative.prompts[0])
}

func TestCompose_QuoteFailureKeepsOtherSections(t *testing.T) {
	narrative := &mockNarrative{text: "analysis"}
	c := newTestComposer(narrative)

	quote := models.QuoteResult{Status: models.QuoteUnavailable, Err: errors.New("timeout")}
	payload := c.Compose(context.Background(), nvda, quote, availableFilings())

	assert.Equal(t, models.SectionUnavailable, payload.Quote.Status)
	assert.Equal(t, NoticeQuoteUnavailable, payload.Quote.Notice)
	assert.Empty(t, payload.Quote.Fields, "no zero placeholders")

	assert.Equal(t, models.SectionOK, payload.Filings.Status)
	assert.Equal(t, models.SectionOK, payload.Narrative.Status)
	assert.Contains(t, narrative.prompts[0], "MARKET DATA: unavailable.")
	assert.Len(t, payload.Sections(), 3)
}

func TestCompose_QuoteNoData(t *testing.T) {
	c := newTestComposer(&mockNarrative{text: "analysis"})

	payload := c.Compose(context.Background(), nvda, models.QuoteResult{Status: models.QuoteNoData}, availableFilings())
	assert.Equal(t, models.SectionNoData, payload.Quote.Status)
	assert.Equal(t, NoticeQuoteNoData, payload.Quote.Notice)
}

func TestCompose_NoCIKOmitsFilings(t *testing.T) {
	narrative := &mockNarrative{text: "analysis"}
	c := newTestComposer(narrative)

	filings := models.FilingsResult{Status: models.FilingsNotApplicable}
	payload := c.Compose(context.Background(), spy, availableQuote(), filings)

	assert.Equal(t, models.SectionOmitted, payload.Filings.Status)
	assert.Empty(t, payload.Filings.Notice, "never an unavailable notice")
	sections := payload.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, models.SectionQuote, sections[0].Kind)
	assert.Equal(t, models.SectionNarrative, sections[1].Kind)
	assert.Contains(t, narrative.prompts[0], "SEC FILINGS: not available (ETF or foreign listing), market data only.")
}

func TestCompose_FilingsNotices(t *testing.T) {
	tests := []struct {
		name   string
		result models.FilingsResult
		status models.SectionStatus
		notice string
	}{
		{"not found", models.FilingsResult{Status: models.FilingsNotFound}, models.SectionNoData, NoticeFilingsNotFound},
		{"unavailable", models.FilingsResult{Status: models.FilingsUnavailable}, models.SectionUnavailable, NoticeFilingsUnavailable},
		{"available without record", models.FilingsResult{Status: models.FilingsAvailable}, models.SectionUnavailable, NoticeFilingsUnavailable},
		{"empty metrics", models.FilingsResult{Status: models.FilingsAvailable, Record: &models.FilingsRecord{CIK: "0000000001"}}, models.SectionOK, NoticeFilingsEmpty},
	}

	c := newTestComposer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := c.FilingsSection(nvda, tt.result)
			assert.Equal(t, tt.status, section.Status)
			assert.Equal(t, tt.notice, section.Notice)
		})
	}
}

func TestCompose_NarrativeFailure(t *testing.T) {
	tests := []struct {
		name      string
		narrative *mockNarrative
		notice    string
	}{
		{"provider error", &mockNarrative{err: errors.New("401 invalid key")}, NoticeNarrativeFailed},
		{"empty text", &mockNarrative{text: "   "}, NoticeNarrativeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestComposer(tt.narrative)
			payload := c.Compose(context.Background(), nvda, availableQuote(), availableFilings())

			assert.Equal(t, models.SectionUnavailable, payload.Narrative.Status)
			assert.Equal(t, tt.notice, payload.Narrative.Notice)
			assert.Equal(t, models.SectionOK, payload.Quote.Status)
			assert.Equal(t, models.SectionOK, payload.Filings.Status)
			assert.Len(t, payload.Sections(), 3)
		})
	}
}

func TestCompose_NarrativeDisabled(t *testing.T) {
	c := newTestComposer(nil)
	payload := c.Compose(context.Background(), nvda, availableQuote(), availableFilings())

	assert.Equal(t, models.SectionUnavailable, payload.Narrative.Status)
	assert.Equal(t, NoticeNarrativeDisabled, payload.Narrative.Notice)
	assert.Empty(t, payload.Prompt)
}

func TestCompose_NothingToAnalyse(t *testing.T) {
	narrative := &mockNarrative{text: "should not be called"}
	c := newTestComposer(narrative)

	payload := c.Compose(context.Background(), spy,
		models.QuoteResult{Status: models.QuoteUnavailable},
		models.FilingsResult{Status: models.FilingsNotApplicable})

	assert.Equal(t, models.SectionNoData, payload.Narrative.Status)
	assert.Equal(t, NoticeNarrativeNoData, payload.Narrative.Notice)
	assert.Empty(t, narrative.prompts)
}

func TestCompose_NarrativeTimeoutBounded(t *testing.T) {
	slow := &blockingNarrative{}
	c := NewComposer(slow, arbor.NewLogger(), Options{NarrativeTimeout: 20 * time.Millisecond})

	start := time.Now()
	payload := c.Compose(context.Background(), nvda, availableQuote(), availableFilings())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.SectionUnavailable, payload.Narrative.Status)
	assert.True(t, strings.HasPrefix(payload.Narrative.Title, "AI analysis"))
}

type blockingNarrative struct{}

func (blockingNarrative) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
