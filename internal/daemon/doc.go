// Package daemon owns the long-running courier process. It wires the
// connectivity monitor, the upload coordinator, and the watch-directory
// ingester together, enforces the single-instance lock, and exposes the
// operations the IPC server forwards from the CLI plus an optional
// read-only HTTP status API.
package daemon
