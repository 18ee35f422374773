// Package api defines wire-format types and converters shared by the IPC
// and HTTP status surfaces. It translates internal queue models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// QueueEntry: transport representation of one queue entry with status,
// retry state, and capture-time metadata.
//
// UploaderStatus: coordinator running state, hold and drain flags, and
// queue stats.
//
// DaemonStatus: aggregated daemon runtime information served by `courier
// status` and GET /api/status.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status) are exposed
// as lowercase strings. Timestamps use RFC3339 with milliseconds. Payload
// bytes never cross the API; consumers see sizes and checksums only.
package api
