// Package config loads, normalizes, and validates Courier configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURIER_API_TOKEN. The Config type centralizes every knob the daemon and CLI
// need, allowing data/watch directories and library server credentials to be
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
