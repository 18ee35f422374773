// Package services defines shared utilities consumed by the uploader and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue entry IDs, component names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (storage vs upload vs validation) consistent.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the agent.
package services
