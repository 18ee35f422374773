package main

import (
	"fmt"
	"strings"
	"time"

	"courier/internal/api"
	"courier/internal/queue"
)

const displayTimeFormat = "2006-01-02 15:04"

// buildQueueListRows keeps the entries in the order the daemon reported
// them. The store lists by sequence, so the top row is the next upload.
func buildQueueListRows(entries []api.QueueEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.ID,
			entry.FileName,
			formatStatusLabel(entry.Status),
			formatSize(entry.FileSize),
			formatDisplayTime(entry.AddedAt),
		})
	}
	return rows
}

// buildQueueStatusRows turns queue stats into table rows, skipping empty
// buckets. An all-empty queue yields no rows.
func buildQueueStatusRows(stats api.QueueStats) [][]string {
	buckets := []struct {
		label string
		count int
	}{
		{"Queued", stats.Queued},
		{"Uploading", stats.Uploading},
		{"Succeeded", stats.Succeeded},
		{"Errored", stats.Errored},
	}
	rows := make([][]string, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket.count == 0 {
			continue
		}
		rows = append(rows, []string{bucket.label, fmt.Sprintf("%d", bucket.count)})
	}
	return rows
}

func formatStatusLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "-"
	}
	words := strings.Split(trimmed, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// formatDisplayTime collapses API timestamps to minute precision in UTC.
// Unparseable values pass through untouched.
func formatDisplayTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.UTC().Format(displayTimeFormat)
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatChecksum(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "-"
	}
	if len(trimmed) > 12 {
		return trimmed[:12]
	}
	return trimmed
}

// normalizeEntryIDs trims id arguments and rejects blank ones.
func normalizeEntryIDs(args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id := strings.TrimSpace(arg)
		if id == "" {
			return nil, fmt.Errorf("invalid entry id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func statusIsRetryable(value string) bool {
	status, ok := queue.ParseStatus(value)
	return ok && status == queue.StatusError
}

func bulkClearLabel(errored, succeeded bool) string {
	switch {
	case errored:
		return "errored entries"
	case succeeded:
		return "succeeded entries"
	default:
		return "queue entries"
	}
}
