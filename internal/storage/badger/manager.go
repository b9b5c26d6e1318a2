package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
)

// Manager owns the database and the stores built on it
type Manager struct {
	db      *BadgerDB
	history interfaces.HistoryStorage
	cursor  interfaces.CursorStorage
	logger  arbor.ILogger
}

// NewManager opens the database and creates the stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		history: NewHistoryStorage(db, logger),
		cursor:  NewCursorStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// HistoryStorage returns the last-sent store
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// CursorStorage returns the rotation cursor store
func (m *Manager) CursorStorage() interfaces.CursorStorage {
	return m.cursor
}

// Close closes the database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage")
	return m.db.Close()
}
