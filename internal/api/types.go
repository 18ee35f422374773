package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueEntry describes a queue entry in a transport-friendly format. The
// payload itself never travels over the API.
type QueueEntry struct {
	ID             string `json:"id"`
	Seq            int64  `json:"seq"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
	MimeType       string `json:"mimeType"`
	Checksum       string `json:"checksum,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	SourcePath     string `json:"sourcePath,omitempty"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	RetryCount     int    `json:"retryCount"`
	AddedAt        string `json:"addedAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
	LastModifiedAt string `json:"lastModifiedAt,omitempty"`
}

// QueueStats is the by-status census of the queue.
type QueueStats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Uploading int `json:"uploading"`
	Succeeded int `json:"succeeded"`
	Errored   int `json:"errored"`
}

// UploaderStatus summarizes coordinator state.
type UploaderStatus struct {
	Running   bool       `json:"running"`
	Paused    bool       `json:"paused"`
	Draining  bool       `json:"draining"`
	Durable   bool       `json:"durable"`
	CurrentID string     `json:"currentId,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Stats     QueueStats `json:"stats"`
}

// ConnectivityStatus reports the current reachability verdict.
type ConnectivityStatus struct {
	Online        bool `json:"online"`
	NetlinkActive bool `json:"netlinkActive"`
}

// WatcherStatus reports the drop-directory intake state.
type WatcherStatus struct {
	Enabled  bool   `json:"enabled"`
	Running  bool   `json:"running"`
	WatchDir string `json:"watchDir,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	Version      string             `json:"version,omitempty"`
	QueueDBPath  string             `json:"queueDbPath"`
	SocketPath   string             `json:"socketPath"`
	LockFilePath string             `json:"lockFilePath"`
	Uploader     UploaderStatus     `json:"uploader"`
	Connectivity ConnectivityStatus `json:"connectivity"`
	Watcher      WatcherStatus      `json:"watcher"`
}

// QueueListResponse wraps a collection of queue entries for API responses.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// QueueEntryResponse wraps a single queue entry.
type QueueEntryResponse struct {
	Entry QueueEntry `json:"entry"`
}

// StatusLine is a labeled severity line for human status output.
// Severity is one of ok, info, warn, error.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
