package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CursorStorage persists rotation cursors by key
type CursorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCursorStorage creates a cursor store
func NewCursorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CursorStorage {
	return &CursorStorage{
		db:     db,
		logger: logger,
	}
}

// SaveCursor overwrites the cursor stored under cursor.Key
func (s *CursorStorage) SaveCursor(ctx context.Context, cursor *models.RotationCursor) error {
	if cursor == nil || cursor.Key == "" {
		return fmt.Errorf("cursor requires a key")
	}

	stored := *cursor
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	if err := s.db.Store().Upsert(stored.Key, &stored); err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", stored.Key, err)
	}
	return nil
}

// LoadCursor returns (nil, nil) when no cursor was saved under key
func (s *CursorStorage) LoadCursor(ctx context.Context, key string) (*models.RotationCursor, error) {
	var cursor models.RotationCursor
	err := s.db.Store().Get(key, &cursor)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor %s: %w", key, err)
	}
	return &cursor, nil
}
