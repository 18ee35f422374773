package ingest

import (
	"context"
	"time"
)

// Item is an inspected file ready to be queued. The payload is authoritative;
// the source path only records provenance for logs and the archive step.
type Item struct {
	SourcePath     string
	FileName       string
	Size           int64
	MimeType       string
	LastModifiedAt time.Time
	Payload        []byte
	Checksum       string
	Width          int
	Height         int
}

// Enqueuer accepts inspected items into the upload queue and returns the
// generated entry id. The watcher calls this for every settled file.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *Item) (string, error)
}
