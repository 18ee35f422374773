package api

import (
	"time"

	"courier/internal/queue"
	"courier/internal/uploader"
)

// FromEntry converts a queue record to its API representation.
func FromEntry(entry *queue.Entry) QueueEntry {
	if entry == nil {
		return QueueEntry{}
	}

	dto := QueueEntry{
		ID:           entry.ID,
		Seq:          entry.Seq,
		FileName:     entry.FileName,
		FileSize:     entry.FileSize,
		MimeType:     entry.MimeType,
		Checksum:     entry.Checksum,
		Width:        entry.Width,
		Height:       entry.Height,
		SourcePath:   entry.SourcePath,
		Status:       string(entry.Status),
		ErrorMessage: entry.ErrorMessage,
		RetryCount:   entry.RetryCount,
	}
	dto.AddedAt = FormatTime(entry.AddedAt)
	dto.UpdatedAt = FormatTime(entry.UpdatedAt)
	dto.LastModifiedAt = FormatTime(entry.LastModifiedAt)
	return dto
}

// FromEntries converts a slice of queue records into API DTOs.
func FromEntries(entries []*queue.Entry) []QueueEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromStats converts coordinator stats to the API payload.
func FromStats(stats uploader.Stats) QueueStats {
	return QueueStats{
		Total:     stats.Total,
		Queued:    stats.Queued,
		Uploading: stats.Uploading,
		Succeeded: stats.Succeeded,
		Errored:   stats.Errored,
	}
}

// FromStatusCounts converts store stats to the API payload. Used on the
// direct-store path when the daemon is not running.
func FromStatusCounts(counts map[queue.Status]int) QueueStats {
	stats := QueueStats{
		Queued:    counts[queue.StatusQueued],
		Uploading: counts[queue.StatusUploading],
		Succeeded: counts[queue.StatusSuccess],
		Errored:   counts[queue.StatusError],
	}
	for _, count := range counts {
		stats.Total += count
	}
	return stats
}

// FromUploaderSummary converts a coordinator summary to the API payload.
func FromUploaderSummary(summary uploader.Summary) UploaderStatus {
	return UploaderStatus{
		Running:   summary.Running,
		Paused:    summary.Paused,
		Draining:  summary.Draining,
		Durable:   summary.Durable,
		CurrentID: summary.CurrentID,
		LastError: summary.LastError,
		Stats:     FromStats(summary.Stats),
	}
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
