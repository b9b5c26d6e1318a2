package filings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/models"
)

// mockSource implements interfaces.FilingsSource
type mockSource struct {
	facts       *edgar.CompanyFacts
	factsErr    error
	subs        *edgar.Submissions
	subsErr     error
	factsCalls  int
	requestedID string
}

func (m *mockSource) GetCompanyFacts(ctx context.Context, cik string) (*edgar.CompanyFacts, error) {
	m.factsCalls++
	m.requestedID = cik
	if m.factsErr != nil {
		return nil, m.factsErr
	}
	return m.facts, nil
}

func (m *mockSource) GetSubmissions(ctx context.Context, cik string) (*edgar.Submissions, error) {
	if m.subsErr != nil {
		return nil, m.subsErr
	}
	return m.subs, nil
}

func (m *mockSource) LookupCIK(ctx context.Context, ticker string) (*edgar.CompanyTicker, error) {
	return nil, edgar.ErrNotFound
}

func (m *mockSource) ArchiveURL(cik, accession string) string {
	return fmt.Sprintf("https://sec.test/%s/%s/", cik, accession)
}

var nvda = models.TrackedEntity{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"}

func submissions() *edgar.Submissions {
	subs := &edgar.Submissions{CIK: "1045810", Name: "NVIDIA CORP"}
	subs.Filings.Recent = edgar.RecentFilings{
		AccessionNumber: []string{"acc-4", "acc-3", "acc-2", "acc-1", "acc-0"},
		FilingDate:      []string{"2024-06-01", "2024-05-29", "2024-05-22", "2024-02-21", "2023-11-21"},
		Form:            []string{"4", "8-K", "10-Q", "10-K", "10-Q"},
		PrimaryDocument: []string{"f4.xml", "8k.htm", "10q.htm", "10k.htm", "10q.htm"},
	}
	return subs
}

func TestService_NoCIKIsNotApplicable(t *testing.T) {
	source := &mockSource{}
	svc := NewService(source, arbor.NewLogger(), time.Second, 3)

	result := svc.Fetch(context.Background(), models.TrackedEntity{Ticker: "SPY", Currency: "USD"})
	assert.Equal(t, models.FilingsNotApplicable, result.Status)
	assert.True(t, errors.Is(result.Err, common.ErrNotApplicable))
	assert.Equal(t, 0, source.factsCalls, "no fetch without a CIK")
}

func TestService_NotFound(t *testing.T) {
	source := &mockSource{factsErr: &edgar.APIError{StatusCode: 404, Endpoint: "/api/xbrl/companyfacts"}}
	svc := NewService(source, arbor.NewLogger(), time.Second, 3)

	result := svc.Fetch(context.Background(), nvda)
	assert.Equal(t, models.FilingsNotFound, result.Status)
	assert.True(t, errors.Is(result.Err, edgar.ErrNotFound))
}

func TestService_TransientFailureIsUnavailable(t *testing.T) {
	source := &mockSource{factsErr: &edgar.APIError{StatusCode: 503, Endpoint: "/api/xbrl/companyfacts"}}
	svc := NewService(source, arbor.NewLogger(), time.Second, 3)

	result := svc.Fetch(context.Background(), nvda)
	assert.Equal(t, models.FilingsUnavailable, result.Status)
	assert.True(t, errors.Is(result.Err, common.ErrSourceUnavailable))
	assert.False(t, errors.Is(result.Err, edgar.ErrNotFound))
}

func TestService_Available(t *testing.T) {
	facts := newDoc().add("us-gaap", "Revenues", "USD",
		fact{Val: 60922000000, Start: "2023-01-30", End: "2024-01-28", Accn: "acc-1", Form: "10-K", Filed: "2024-02-21"},
	).doc
	source := &mockSource{facts: facts, subs: submissions()}
	svc := NewService(source, arbor.NewLogger(), time.Second, 3)

	result := svc.Fetch(context.Background(), nvda)
	require.Equal(t, models.FilingsAvailable, result.Status)
	require.NotNil(t, result.Record)
	assert.NoError(t, result.Err)

	record := result.Record
	assert.Equal(t, "0001045810", record.CIK)
	assert.Equal(t, "NVIDIA CORP", record.EntityName)
	assert.NotNil(t, record.Annual(models.MetricRevenue))

	require.Len(t, record.RecentFilings, 3)
	assert.Equal(t, "8-K", record.RecentFilings[0].Form, "Form 4 is not listed")
	assert.Equal(t, "10-Q", record.RecentFilings[1].Form)
	assert.Equal(t, "10-K", record.RecentFilings[2].Form)
	assert.Equal(t, "https://sec.test/0001045810/acc-1/10k.htm", record.RecentFilings[2].URL)
	assert.Equal(t, date("2024-02-21"), record.RecentFilings[2].FiledAt)
}

func TestService_SubmissionsFailureOnlyDropsRecentFilings(t *testing.T) {
	facts := &edgar.CompanyFacts{CIK: json.Number("1045810"), Facts: map[string]map[string]edgar.Concept{}}
	source := &mockSource{facts: facts, subsErr: errors.New("connection reset")}
	svc := NewService(source, arbor.NewLogger(), time.Second, 3)

	result := svc.Fetch(context.Background(), nvda)
	require.Equal(t, models.FilingsAvailable, result.Status)
	assert.Empty(t, result.Record.RecentFilings)
	assert.Equal(t, "NVIDIA", result.Record.EntityName, "entity name falls back to the configured name")
}
