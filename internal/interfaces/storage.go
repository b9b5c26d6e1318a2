package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/finbot/internal/models"
)

// HistoryStorage persists last-sent timestamps keyed by ticker
type HistoryStorage interface {
	SaveSent(ctx context.Context, record *models.SentRecord) error
	ListSent(ctx context.Context) ([]models.SentRecord, error)
}

// CursorStorage persists the rotation cursor. Load returns (nil, nil) when nothing was saved.
type CursorStorage interface {
	SaveCursor(ctx context.Context, cursor *models.RotationCursor) error
	LoadCursor(ctx context.Context, key string) (*models.RotationCursor, error)
}

// HistoryReader is the read side of the history store, used by the command path
type HistoryReader interface {
	LastSentAll() []models.HistoryEntry
}

// HistoryWriter is the write side, used only by the rotation scheduler
type HistoryWriter interface {
	RecordSent(ctx context.Context, ticker string, at time.Time, runID string)
}
