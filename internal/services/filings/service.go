package filings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	// DefaultTimeout bounds one companyfacts download, which can run to several megabytes
	DefaultTimeout = 30 * time.Second

	// DefaultRecentFilings is how many recent filings are listed
	DefaultRecentFilings = 3
)

// recentForms are the forms listed under recent filings
var recentForms = map[string]bool{
	"10-K": true, "10-K/A": true,
	"10-Q": true, "10-Q/A": true,
	"8-K":  true,
	"20-F": true, "40-F": true, "6-K": true,
}

// Service fetches companyfacts and the submissions index, then extracts metrics
type Service struct {
	source      interfaces.FilingsSource
	logger      arbor.ILogger
	timeout     time.Duration
	recentLimit int
}

// NewService creates a filings service
func NewService(source interfaces.FilingsSource, logger arbor.ILogger, timeout time.Duration, recentLimit int) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if recentLimit < 0 {
		recentLimit = DefaultRecentFilings
	}
	return &Service{
		source:      source,
		logger:      logger,
		timeout:     timeout,
		recentLimit: recentLimit,
	}
}

// Fetch returns the filings result for entity. Entities without a CIK are
// FilingsNotApplicable, a 404 is FilingsNotFound and any other failure FilingsUnavailable.
func (s *Service) Fetch(ctx context.Context, entity models.TrackedEntity) models.FilingsResult {
	if !entity.HasFilings() {
		return models.FilingsResult{
			Status: models.FilingsNotApplicable,
			Err:    fmt.Errorf("%w: %s has no CIK", common.ErrNotApplicable, entity.Ticker),
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	doc, err := s.source.GetCompanyFacts(fetchCtx, entity.CIK)
	if err != nil {
		if errors.Is(err, edgar.ErrNotFound) {
			s.logger.Info().
				Str("ticker", entity.Ticker).
				Str("cik", entity.CIK).
				Msg("No company facts for CIK")
			return models.FilingsResult{Status: models.FilingsNotFound, Err: err}
		}

		s.logger.Warn().
			Err(err).
			Str("ticker", entity.Ticker).
			Str("cik", entity.CIK).
			Dur("elapsed", time.Since(start)).
			Msg("Company facts fetch failed")
		return models.FilingsResult{
			Status: models.FilingsUnavailable,
			Err:    fmt.Errorf("%w: filings %s: %w", common.ErrSourceUnavailable, entity.CIK, err),
		}
	}

	currency := entity.FilingsCurrency
	if currency == "" {
		currency = DefaultCurrency
	}
	record := Extract(doc, ExtractOptions{Currency: currency})
	record.CIK = edgar.PadCIK(entity.CIK)
	if record.EntityName == "" {
		record.EntityName = entity.Name
	}

	if len(record.Diagnostics) > 0 {
		s.logger.Debug().
			Str("cik", record.CIK).
			Int("count", len(record.Diagnostics)).
			Strs("diagnostics", firstN(record.Diagnostics, 5)).
			Msg("Skipped filings observations")
	}

	if s.recentLimit > 0 {
		record.RecentFilings = s.recentFilings(fetchCtx, record.CIK)
	}

	s.logger.Debug().
		Str("ticker", entity.Ticker).
		Str("cik", record.CIK).
		Int("metrics", len(record.Metrics)).
		Dur("elapsed", time.Since(start)).
		Msg("Filings extracted")

	return models.FilingsResult{Status: models.FilingsAvailable, Record: record}
}

// recentFilings lists the newest periodic and current reports. Failure only costs the list.
func (s *Service) recentFilings(ctx context.Context, cik string) []models.FilingSummary {
	subs, err := s.source.GetSubmissions(ctx, cik)
	if err != nil {
		s.logger.Warn().Err(err).Str("cik", cik).Msg("Submissions fetch failed, recent filings omitted")
		return nil
	}

	rows := subs.Filings.Recent.Rows()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].FilingDate > rows[j].FilingDate })

	var out []models.FilingSummary
	for _, row := range rows {
		if !recentForms[row.Form] {
			continue
		}
		filed, err := time.Parse(dateLayout, row.FilingDate)
		if err != nil {
			continue
		}

		url := s.source.ArchiveURL(cik, row.AccessionNumber)
		if row.PrimaryDocument != "" {
			url += row.PrimaryDocument
		}
		out = append(out, models.FilingSummary{
			Form:      row.Form,
			FiledAt:   filed,
			Accession: row.AccessionNumber,
			URL:       url,
		})
		if len(out) == s.recentLimit {
			break
		}
	}
	return out
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
