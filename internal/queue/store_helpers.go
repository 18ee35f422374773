package queue

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = "id, seq, file_name, file_size, mime_type, last_modified_at, source_path, payload, checksum, width, height, status, error_message, retry_count, added_at, updated_at"

// entrySummaryColumns substitutes NULL for the payload blob so listings do
// not drag file contents through memory.
const entrySummaryColumns = "id, seq, file_name, file_size, mime_type, last_modified_at, source_path, NULL AS payload, checksum, width, height, status, error_message, retry_count, added_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id              string
		seq             int64
		fileName        string
		fileSize        int64
		mimeType        string
		lastModifiedRaw sql.NullString
		sourcePath      sql.NullString
		payload         []byte
		checksum        string
		width           int
		height          int
		statusStr       string
		errorMessage    sql.NullString
		retryCount      int
		addedRaw        sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&seq,
		&fileName,
		&fileSize,
		&mimeType,
		&lastModifiedRaw,
		&sourcePath,
		&payload,
		&checksum,
		&width,
		&height,
		&statusStr,
		&errorMessage,
		&retryCount,
		&addedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:           id,
		Seq:          seq,
		FileName:     fileName,
		FileSize:     fileSize,
		MimeType:     mimeType,
		SourcePath:   sourcePath.String,
		Payload:      payload,
		Checksum:     checksum,
		Width:        width,
		Height:       height,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
	}

	if lastModifiedRaw.Valid {
		if modified, err := parseTimeString(lastModifiedRaw.String); err == nil {
			entry.LastModifiedAt = modified
		}
	}
	if added, err := parseTimeString(addedRaw.String); err == nil {
		entry.AddedAt = added
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
