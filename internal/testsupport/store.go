package testsupport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/queue"
)

// MustOpenStore opens the SQLite queue store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.SQLiteStore {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEntry persists a queued entry with the given name and sequence,
// deriving payload, checksum, and timestamps.
func NewEntry(t testing.TB, store queue.Store, fileName string, seq int64) *queue.Entry {
	t.Helper()

	payload := []byte("payload for " + fileName)
	sum := sha256.Sum256(payload)
	now := time.Now().UTC()
	entry := &queue.Entry{
		ID:        queue.NewEntryID(),
		Seq:       seq,
		FileName:  fileName,
		FileSize:  int64(len(payload)),
		MimeType:  "image/png",
		Payload:   payload,
		Checksum:  hex.EncodeToString(sum[:]),
		Status:    queue.StatusQueued,
		AddedAt:   now,
		UpdatedAt: now,
	}
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("store.Put(%s): %v", fileName, err)
	}
	return entry
}
