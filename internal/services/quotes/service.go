package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	// DefaultTimeout bounds one snapshot (five paced requests).
	DefaultTimeout = 15 * time.Second

	// DefaultCacheTTL matches how long a quote stays useful for a 15-minute rotation.
	DefaultCacheTTL = 25 * time.Minute
)

// Service fetches raw snapshots from the quote source and normalizes them.
// Available records are cached per symbol for the cache TTL.
type Service struct {
	source   interfaces.QuoteSource
	logger   arbor.ILogger
	timeout  time.Duration
	cacheTTL time.Duration
	cache    *ristretto.Cache[string, *models.QuoteRecord]
}

// NewService creates a quote service. A zero cacheTTL disables caching.
func NewService(source interfaces.QuoteSource, logger arbor.ILogger, timeout, cacheTTL time.Duration) (*Service, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Service{
		source:   source,
		logger:   logger,
		timeout:  timeout,
		cacheTTL: cacheTTL,
	}

	if cacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, *models.QuoteRecord]{
			NumCounters: 10_000,
			MaxCost:     1_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create quote cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Fetch returns the normalized quote for entity.Ticker. It never returns an error:
// a failed or timed-out fetch yields QuoteUnavailable, an unknown symbol QuoteNoData.
func (s *Service) Fetch(ctx context.Context, entity models.TrackedEntity) models.QuoteResult {
	symbol := entity.Ticker

	if s.cache != nil {
		if record, ok := s.cache.Get(symbol); ok {
			s.logger.Debug().
				Str("symbol", symbol).
				Str("age", time.Since(record.FetchedAt).Round(time.Second).String()).
				Msg("Using cached quote")
			return models.QuoteResult{Status: models.QuoteAvailable, Record: record}
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.source.Snapshot(fetchCtx, symbol)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Dur("elapsed", time.Since(start)).
			Msg("Quote fetch failed")
		return models.QuoteResult{
			Status: models.QuoteUnavailable,
			Err:    fmt.Errorf("%w: quote %s: %w", common.ErrSourceUnavailable, symbol, err),
		}
	}

	result := Normalize(raw, entity.Currency)
	switch result.Status {
	case models.QuoteNoData:
		s.logger.Info().Str("symbol", symbol).Msg("Quote source has no data for symbol")
	case models.QuoteAvailable:
		s.logger.Debug().
			Str("symbol", symbol).
			Float64("price", result.Record.Price.Float64).
			Dur("elapsed", time.Since(start)).
			Msg("Quote fetched")
		if s.cache != nil {
			s.cache.SetWithTTL(symbol, result.Record, 1, s.cacheTTL)
			s.cache.Wait()
		}
	}

	return result
}

// Close releases the cache
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}
