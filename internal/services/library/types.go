package library

import "time"

// DestinationRequest describes the file an upload slot is requested for.
type DestinationRequest struct {
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
}

// Destination is the server-assigned slot a payload is transferred into.
type Destination struct {
	UploadID  string `json:"upload_id"`
	UploadURL string `json:"upload_url"`
}

// RegistrationRequest finalizes an upload by describing the asset the
// transferred payload becomes.
type RegistrationRequest struct {
	UploadID       string    `json:"upload_id"`
	FileName       string    `json:"file_name"`
	Title          string    `json:"title,omitempty"`
	MimeType       string    `json:"mime_type"`
	Checksum       string    `json:"checksum"`
	SizeBytes      int64     `json:"size_bytes"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at,omitzero"`
}

// Asset identifies a registered library asset.
type Asset struct {
	AssetID string `json:"asset_id"`
	URL     string `json:"url,omitempty"`
}
