package ipc

import "courier/internal/api"

// QueueEntry mirrors the HTTP API queue DTO for IPC callers.
type QueueEntry = api.QueueEntry

// UploaderStatus mirrors the HTTP API uploader slice of daemon status.
type UploaderStatus = api.UploaderStatus

// ConnectivityStatus mirrors the HTTP API connectivity verdict.
type ConnectivityStatus = api.ConnectivityStatus

// WatcherStatus mirrors the HTTP API watch-directory state.
type WatcherStatus = api.WatcherStatus

// StatusLine mirrors the HTTP API labeled severity line.
type StatusLine = api.StatusLine

// StartRequest starts daemon processing inside a running process.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse aggregates daemon, uploader, connectivity, and watcher
// state.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"started_at,omitempty"`
	Version      string             `json:"version,omitempty"`
	QueueDBPath  string             `json:"queue_db_path"`
	SocketPath   string             `json:"socket_path"`
	LockPath     string             `json:"lock_path"`
	Uploader     UploaderStatus     `json:"uploader"`
	Connectivity ConnectivityStatus `json:"connectivity"`
	Watcher      WatcherStatus      `json:"watcher"`

	// Filled client-side by daemonctl.BuildStatusSnapshot, never by the
	// daemon itself.
	SystemChecks []StatusLine `json:"system_checks,omitempty"`
	PathChecks   []StatusLine `json:"path_checks,omitempty"`
}

// EnqueueRequest adds one file to the upload queue.
type EnqueueRequest struct {
	Path string `json:"path"`
}

// EnqueueResponse returns the stored entry.
type EnqueueResponse struct {
	Entry QueueEntry `json:"entry"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries in drain order.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// QueueDescribeRequest fetches a single queue entry by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Entry QueueEntry `json:"entry"`
}

// QueueRetryRequest requeues errored entries. Empty list means every
// errored entry.
type QueueRetryRequest struct {
	IDs []string `json:"ids"`
}

// QueueRetryResponse reports number of requeued entries.
type QueueRetryResponse struct {
	Updated int `json:"updated"`
}

// QueueRemoveRequest deletes entries by id.
type QueueRemoveRequest struct {
	IDs []string `json:"ids"`
}

// QueueRemoveResponse reports number of removed entries.
type QueueRemoveResponse struct {
	Removed int `json:"removed"`
}

// QueueClearRequest removes entries wholesale, optionally only those in
// the named statuses.
type QueueClearRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// DrainRequest asks the uploader to run a pass now.
type DrainRequest struct{}

// DrainResponse reports whether the pass was admitted.
type DrainResponse struct {
	Admitted bool `json:"admitted"`
}

// ProbeRequest forces a connectivity check.
type ProbeRequest struct{}

// ProbeResponse carries the fresh reachability verdict.
type ProbeResponse struct {
	Online bool `json:"online"`
}

// PauseRequest suspends or resumes upload passes.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// PauseResponse echoes the effective pause state.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
