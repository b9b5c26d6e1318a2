package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

// HistoryStorage persists one SentRecord per ticker
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a history store
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func historyKey(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// SaveSent inserts or overwrites the record for its ticker
func (s *HistoryStorage) SaveSent(ctx context.Context, record *models.SentRecord) error {
	if record == nil || strings.TrimSpace(record.Ticker) == "" {
		return fmt.Errorf("sent record requires a ticker")
	}

	stored := *record
	stored.Ticker = historyKey(record.Ticker)
	stored.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(stored.Ticker, &stored); err != nil {
		return fmt.Errorf("failed to save sent record for %s: %w", stored.Ticker, err)
	}
	return nil
}

// ListSent returns every stored record, ordered by ticker
func (s *HistoryStorage) ListSent(ctx context.Context) ([]models.SentRecord, error) {
	var records []models.SentRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list sent records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Ticker < records[j].Ticker })
	return records, nil
}
