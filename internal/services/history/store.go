// Package history tracks when each tracked entity was last dispatched.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

// Store holds one last-sent timestamp per tracked entity. Reads return copies so a
// reader never observes a partial write. Entries are never deleted.
type Store struct {
	mu       sync.RWMutex
	entities []models.TrackedEntity
	lastSent map[string]time.Time
	storage  interfaces.HistoryStorage // optional
	logger   arbor.ILogger
}

// NewStore creates a store for entities in their configured order. When storage is
// non-nil, persisted timestamps of tracked entities are loaded immediately.
func NewStore(ctx context.Context, entities []models.TrackedEntity, storage interfaces.HistoryStorage, logger arbor.ILogger) *Store {
	s := &Store{
		entities: append([]models.TrackedEntity(nil), entities...),
		lastSent: make(map[string]time.Time, len(entities)),
		storage:  storage,
		logger:   logger,
	}

	if storage != nil {
		s.load(ctx)
	}

	return s
}

// key is the case-insensitive map key of a ticker
func key(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (s *Store) load(ctx context.Context) {
	records, err := s.storage.ListSent(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load send history, starting empty")
		return
	}

	tracked := make(map[string]bool, len(s.entities))
	for _, e := range s.entities {
		tracked[key(e.Ticker)] = true
	}

	loaded := 0
	for _, record := range records {
		ticker := key(record.Ticker)
		if !tracked[ticker] {
			continue
		}
		s.lastSent[ticker] = record.SentAt
		loaded++
	}

	s.logger.Debug().Int("entries", loaded).Msg("Send history loaded")
}

// RecordSent sets the last-sent time of ticker, overwriting any previous value.
// Persistence failures are logged; the in-memory update always applies.
func (s *Store) RecordSent(ctx context.Context, ticker string, at time.Time, runID string) {
	ticker = key(ticker)

	s.mu.Lock()
	s.lastSent[ticker] = at
	s.mu.Unlock()

	if s.storage == nil {
		return
	}

	record := &models.SentRecord{
		Ticker:    ticker,
		SentAt:    at,
		RunID:     runID,
		UpdatedAt: time.Now(),
	}
	if err := s.storage.SaveSent(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to persist send history")
	}
}

// LastSentAll returns one entry per tracked entity in configured order.
// LastSent is nil for entities never sent.
func (s *Store) LastSentAll() []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.HistoryEntry, 0, len(s.entities))
	for _, e := range s.entities {
		entry := models.HistoryEntry{Ticker: e.Ticker, Name: e.Name}
		if at, ok := s.lastSent[key(e.Ticker)]; ok {
			ts := at
			entry.LastSent = &ts
		}
		entries = append(entries, entry)
	}
	return entries
}
