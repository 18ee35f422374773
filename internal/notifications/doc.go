// Package notifications pushes queue events to an ntfy topic.
//
// Every event type has its own config gate, and repeated identical
// notifications inside the dedup window are dropped so a flapping network
// connection does not flood the topic. Without a configured topic the
// service is a no-op.
package notifications
