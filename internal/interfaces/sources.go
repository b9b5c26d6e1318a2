package interfaces

import (
	"context"

	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/finnhub"
	"github.com/ternarybob/finbot/internal/models"
)

// QuoteSource returns the raw market snapshot for a quote-source symbol
type QuoteSource interface {
	Snapshot(ctx context.Context, symbol string) (*finnhub.Snapshot, error)
}

// FilingsSource returns raw SEC documents. A missing document wraps edgar.ErrNotFound.
type FilingsSource interface {
	GetCompanyFacts(ctx context.Context, cik string) (*edgar.CompanyFacts, error)
	GetSubmissions(ctx context.Context, cik string) (*edgar.Submissions, error)
	LookupCIK(ctx context.Context, ticker string) (*edgar.CompanyTicker, error)
	ArchiveURL(cik, accession string) string
}

// QuoteService fetches and normalizes a quote for an entity. It never returns an error:
// failures are expressed through QuoteResult.Status.
type QuoteService interface {
	Fetch(ctx context.Context, entity models.TrackedEntity) models.QuoteResult
}

// FilingsService fetches and extracts filings for an entity. Failures are expressed
// through FilingsResult.Status.
type FilingsService interface {
	Fetch(ctx context.Context, entity models.TrackedEntity) models.FilingsResult
}

// ReportPipeline produces a complete report payload for one entity
type ReportPipeline interface {
	Run(ctx context.Context, entity models.TrackedEntity, runID string) *models.ReportPayload
}
