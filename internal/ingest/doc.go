// Package ingest turns files on disk into upload queue candidates.
//
// The Inspector reads a file once, computing its checksum while streaming,
// then sniffs the MIME type, decodes image dimensions, and optionally
// downscales oversized photos before they are queued. The Watcher feeds the
// inspector from a drop directory: it scans once on startup, follows fsnotify
// events afterwards, and waits for a file's size to settle before ingesting
// so half-copied files are never picked up.
package ingest
