package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"courier/internal/services"
)

// GetAll returns every persisted entry, payloads included, ordered by
// insertion sequence. Used once at startup to seed the in-memory mirror.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM upload_entries ORDER BY seq`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "get all", "query entries", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorageRead, "queue", "get all", "scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "get all", "iterate entries", err)
	}
	return entries, nil
}

// Put inserts or overwrites an entry by id. Immutable fields (metadata,
// payload, checksum, dimensions, sequence) are only written on insert; an
// overwrite touches the mutable state alone.
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return services.Wrap(services.ErrValidation, "queue", "put", "entry is nil", nil)
	}
	if entry.ID == "" {
		return services.Wrap(services.ErrValidation, "queue", "put", "entry id is empty", nil)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO upload_entries (
            id, seq, file_name, file_size, mime_type, last_modified_at, source_path,
            payload, checksum, width, height, status, error_message, retry_count,
            added_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            error_message = excluded.error_message,
            retry_count = excluded.retry_count,
            updated_at = excluded.updated_at`,
		entry.ID,
		entry.Seq,
		entry.FileName,
		entry.FileSize,
		entry.MimeType,
		nullableTime(entry.LastModifiedAt),
		nullableString(entry.SourcePath),
		entry.Payload,
		entry.Checksum,
		entry.Width,
		entry.Height,
		entry.Status,
		nullableString(entry.ErrorMessage),
		entry.RetryCount,
		entry.AddedAt.UTC().Format(time.RFC3339Nano),
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return services.Wrap(services.ErrStorageWrite, "queue", "put", "upsert entry", err)
	}
	return nil
}

// Delete removes an entry by id; deleting an absent id is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM upload_entries WHERE id = ?`, id); err != nil {
		return services.Wrap(services.ErrStorageWrite, "queue", "delete", "delete entry", err)
	}
	return nil
}

// GetByID fetches a single entry, payload included. Returns nil when absent.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM upload_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "get", "scan entry", err)
	}
	return entry, nil
}

// List returns entries without payloads, filtered by status set (or all
// entries when no status is provided), in insertion order. Used by the CLI
// when the daemon is not running.
func (s *SQLiteStore) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entrySummaryColumns + ` FROM upload_entries`
	orderClause := ` ORDER BY seq`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "list", "query entries", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorageRead, "queue", "list", "scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "list", "iterate entries", err)
	}
	return entries, nil
}

// Stats returns a count of entries grouped by status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM upload_entries GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "stats", "query counts", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrStorageRead, "queue", "stats", "scan count", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorageRead, "queue", "stats", "iterate counts", err)
	}
	return stats, nil
}

// NextSeq returns the next insertion sequence value.
func (s *SQLiteStore) NextSeq(ctx context.Context) (int64, error) {
	var maxSeq sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM upload_entries`)
	if err := row.Scan(&maxSeq); err != nil {
		return 0, services.Wrap(services.ErrStorageRead, "queue", "next seq", "scan max", err)
	}
	return maxSeq.Int64 + 1, nil
}

// RetryErrored resets errored entries back to queued with a fresh retry
// budget. When ids are given only those entries are touched; otherwise every
// errored entry resets. Returns the number of entries updated.
func (s *SQLiteStore) RetryErrored(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE upload_entries
        SET status = ?, error_message = NULL, retry_count = 0, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, now, StatusError}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrStorageWrite, "queue", "retry", "reset errored entries", err)
	}
	return res.RowsAffected()
}

// Remove deletes the given entries. Returns how many rows were removed.
func (s *SQLiteStore) Remove(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_entries WHERE id IN (`+makePlaceholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrStorageWrite, "queue", "remove", "delete entries", err)
	}
	return res.RowsAffected()
}

// ClearStatuses removes every entry in the given statuses, or the whole
// queue when none are provided. Returns how many rows were removed.
func (s *SQLiteStore) ClearStatuses(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		res, err := s.execWithRetry(ctx, `DELETE FROM upload_entries`)
		if err != nil {
			return 0, services.Wrap(services.ErrStorageWrite, "queue", "clear", "delete all entries", err)
		}
		return res.RowsAffected()
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_entries WHERE status IN (`+makePlaceholders(len(statuses))+`)`, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrStorageWrite, "queue", "clear", "delete entries", err)
	}
	return res.RowsAffected()
}
