// Package uploader owns the upload queue: the per-entry state machine, the
// sequential drain loop, and the durable-store/memory-mirror pairing.
//
// A single Coordinator is constructed per daemon session with explicit
// dependencies (store, transport, connectivity monitor, notifier, logger).
// Persisted entries are loaded exactly once before any mutation; entries left
// in the uploading state by a crashed session are returned to queued.
//
// Drains run one at a time and upload one entry at a time, oldest first.
// A failed attempt re-queues the entry below the retry cap and pins it at
// error once the cap is reached; only a manual retry moves it after that.
// Successful entries linger for a short grace period so observers can see
// the final state, then disappear from both the mirror and the store.
package uploader
