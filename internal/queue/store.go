package queue

import (
	"context"
	"log/slog"

	"courier/internal/config"
	"courier/internal/logging"
)

// Store is the durable persistence surface the uploader depends on. The
// SQLite-backed store satisfies it for normal operation; MemoryStore stands
// in when durable storage is unavailable and in tests.
type Store interface {
	// GetAll returns every persisted entry in insertion order. An empty
	// store yields an empty slice, never an error.
	GetAll(ctx context.Context) ([]*Entry, error)
	// Put inserts or overwrites an entry by id.
	Put(ctx context.Context, entry *Entry) error
	// Delete removes an entry; deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}

// OpenWithFallback opens the SQLite store, degrading to a memory-only store
// when durable storage cannot be established. The returned bool reports
// whether the store is durable. The queue keeps functioning either way;
// entries in a memory store do not survive a restart.
func OpenWithFallback(cfg *config.Config, logger *slog.Logger) (Store, bool) {
	store, err := Open(cfg)
	if err != nil {
		if logger != nil {
			logger.Warn("durable queue storage unavailable; continuing memory-only",
				logging.Error(err),
				logging.Alert("storage_degraded"),
				logging.String(logging.FieldEventType, "storage_degraded"),
				logging.String(logging.FieldErrorHint, "check data_dir permissions and disk space"),
				logging.String(logging.FieldImpact, "queued uploads will not survive a restart"),
			)
		}
		return NewMemoryStore(), false
	}
	return store, true
}
