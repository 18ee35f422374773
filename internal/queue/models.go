package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue entry.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

var allStatuses = []Status{
	StatusQueued,
	StatusUploading,
	StatusSuccess,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Entry represents one file awaiting or undergoing upload.
//
// ID, Seq, the file metadata fields, Payload, Checksum, and the pixel
// dimensions are captured at enqueue time and never revised. Status drives
// everything observers see; ErrorMessage and RetryCount track failures.
type Entry struct {
	ID             string
	Seq            int64
	FileName       string
	FileSize       int64
	MimeType       string
	LastModifiedAt time.Time
	SourcePath     string
	Payload        []byte
	Checksum       string
	Width          int
	Height         int
	Status         Status
	ErrorMessage   string
	RetryCount     int
	AddedAt        time.Time
	UpdatedAt      time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// MarkQueued returns the entry to the queued state, clearing any failure
// message from a previous attempt.
func (e *Entry) MarkQueued() {
	e.Status = StatusQueued
	e.ErrorMessage = ""
	e.touch()
}

// MarkUploading flags the entry as the one currently being transferred.
func (e *Entry) MarkUploading() {
	e.Status = StatusUploading
	e.touch()
}

// MarkSuccess records a completed upload.
func (e *Entry) MarkSuccess() {
	e.Status = StatusSuccess
	e.ErrorMessage = ""
	e.touch()
}

// MarkError pins the entry in the error state with the given message.
func (e *Entry) MarkError(message string) {
	e.Status = StatusError
	e.ErrorMessage = message
	e.touch()
}

// ResetForRetry prepares a manually retried entry: retry budget restored,
// failure message cleared, status back to queued.
func (e *Entry) ResetForRetry() {
	e.RetryCount = 0
	e.MarkQueued()
}

func (e *Entry) touch() {
	e.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy safe to hand to observers. The payload slice is
// shared; callers must treat it as read-only.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
