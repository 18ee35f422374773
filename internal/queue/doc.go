// Package queue persists upload entries and exposes the durable store the
// uploader drains.
//
// The SQLite-backed SQLiteStore is the normal backing: schema initialization,
// busy-retry wrappers, and maintenance queries (list, stats, retry, remove)
// live here. MemoryStore satisfies the same Store interface for degraded
// operation when durable storage cannot be opened, and for tests.
//
// Entries carry their payload bytes so a queued upload survives a restart
// even if the source file has since moved. The database is transient working
// state, not an archive: successful uploads are deleted shortly after they
// finish. Schema changes bump the version in schema.go; users clear the
// database to adopt the new schema.
package queue
