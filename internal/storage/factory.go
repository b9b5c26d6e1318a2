package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/storage/badger"
)

// NewStorageManager opens Badger when any state is configured to persist.
// It returns (nil, nil) when history and cursor both live in memory only.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (*badger.Manager, error) {
	if !config.Rotation.PersistHistory && !config.Rotation.PersistCursor {
		logger.Info().Msg("Persistence disabled, history and rotation cursor kept in memory")
		return nil, nil
	}
	return badger.NewManager(logger, &config.Storage.Badger)
}
