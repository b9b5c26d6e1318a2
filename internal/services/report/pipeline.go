package report

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

// Pipeline runs one report end to end: quote and filings fetched concurrently,
// then composition and narrative. Shared by the rotation and on-demand lookups.
type Pipeline struct {
	quotes   interfaces.QuoteService
	filings  interfaces.FilingsService
	composer *Composer
	logger   arbor.ILogger
}

// NewPipeline creates a pipeline
func NewPipeline(quotes interfaces.QuoteService, filings interfaces.FilingsService, composer *Composer, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		quotes:   quotes,
		filings:  filings,
		composer: composer,
		logger:   logger,
	}
}

// Composer returns the composer used for single-section lookups
func (p *Pipeline) Composer() *Composer {
	return p.composer
}

// Run produces the report payload for entity. It never fails: every section carries
// its own status.
func (p *Pipeline) Run(ctx context.Context, entity models.TrackedEntity, runID string) *models.ReportPayload {
	start := time.Now()

	var (
		wg      sync.WaitGroup
		quote   models.QuoteResult
		filings models.FilingsResult
	)

	// A panicking fetch leaves its zero result, which composes as unavailable
	common.SafeGoWait(&wg, p.logger, "quote:"+entity.Ticker, func() {
		quote = p.quotes.Fetch(ctx, entity)
	})
	common.SafeGoWait(&wg, p.logger, "filings:"+entity.Ticker, func() {
		filings = p.filings.Fetch(ctx, entity)
	})
	wg.Wait()

	payload := p.composer.Compose(ctx, entity, quote, filings)
	payload.RunID = runID

	p.logger.Info().
		Str("run_id", runID).
		Str("ticker", entity.Ticker).
		Str("quote", string(quote.Status)).
		Str("filings", string(filings.Status)).
		Str("narrative", string(payload.Narrative.Status)).
		Dur("elapsed", time.Since(start)).
		Msg("Report composed")

	return payload
}

// Quote fetches and renders only the quote section
func (p *Pipeline) Quote(ctx context.Context, entity models.TrackedEntity) models.Section {
	result := p.quotes.Fetch(ctx, entity)
	return p.composer.QuoteSection(entity, result, p.composer.now().UTC())
}

// Filings fetches and renders only the filings section
func (p *Pipeline) Filings(ctx context.Context, entity models.TrackedEntity) models.Section {
	result := p.filings.Fetch(ctx, entity)
	return p.composer.FilingsSection(entity, result)
}
