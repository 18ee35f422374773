package uploader

import (
	"context"
	"strings"
	"time"

	"courier/internal/ingest"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
)

// Enqueue admits an inspected item into the queue: id and sequence are
// assigned synchronously, the entry persists and mirrors, and a drain is
// kicked when the monitor reports online. The caller never waits for the
// upload itself. Only programmer-error input is rejected.
func (c *Coordinator) Enqueue(ctx context.Context, item *ingest.Item) (string, error) {
	if item == nil {
		return "", services.Wrap(services.ErrValidation, "uploader", "enqueue", "item is required", nil)
	}
	name := strings.TrimSpace(item.FileName)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "uploader", "enqueue", "file name is required", nil)
	}
	if len(item.Payload) == 0 {
		return "", services.Wrap(services.ErrValidation, "uploader", "enqueue", "payload is empty", nil)
	}

	c.ensureLoaded(ctx)

	size := item.Size
	if size <= 0 {
		size = int64(len(item.Payload))
	}
	mimeType := strings.TrimSpace(item.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	now := time.Now().UTC()
	entry := &queue.Entry{
		ID:             queue.NewEntryID(),
		FileName:       name,
		FileSize:       size,
		MimeType:       mimeType,
		LastModifiedAt: item.LastModifiedAt,
		SourcePath:     item.SourcePath,
		Payload:        item.Payload,
		Checksum:       item.Checksum,
		Width:          item.Width,
		Height:         item.Height,
		Status:         queue.StatusQueued,
		AddedAt:        now,
		UpdatedAt:      now,
	}

	c.mu.Lock()
	entry.Seq = c.nextSeq
	c.nextSeq++
	err := c.persistLocked(ctx, entry)
	c.entries[entry.ID] = entry
	c.order = append(c.order, entry.ID)
	c.mu.Unlock()

	if err != nil {
		c.announceDegraded(ctx, err)
	}

	online := c.online()
	c.logger.Info("entry enqueued",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String(logging.FieldFileName, entry.FileName),
		logging.Int64("file_size_bytes", entry.FileSize),
		logging.String("mime_type", entry.MimeType),
		logging.Bool("online", online),
	)
	if online {
		c.requestDrain("enqueue")
	}
	return entry.ID, nil
}

// Retry resets the named error entries to queued with a fresh retry
// budget. Entries in any other state, and unknown ids, are left alone.
// Returns the number reset.
func (c *Coordinator) Retry(ctx context.Context, ids ...string) int {
	c.ensureLoaded(ctx)

	var degradeErr error
	count := 0
	c.mu.Lock()
	for _, id := range ids {
		entry, ok := c.entries[id]
		if !ok || entry.Status != queue.StatusError {
			continue
		}
		clone := entry.Clone()
		clone.ResetForRetry()
		if err := c.persistLocked(ctx, clone); err != nil && degradeErr == nil {
			degradeErr = err
		}
		c.entries[id] = clone
		count++
	}
	c.mu.Unlock()

	if degradeErr != nil {
		c.announceDegraded(ctx, degradeErr)
	}
	if count > 0 {
		c.logger.Info("entries reset for retry", logging.Int("requeued", count))
		c.requestDrain("retry")
	}
	return count
}

// RetryAll retries every entry pinned at error.
func (c *Coordinator) RetryAll(ctx context.Context) int {
	c.ensureLoaded(ctx)

	c.mu.RLock()
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if entry := c.entries[id]; entry != nil && entry.Status == queue.StatusError {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()

	if len(ids) == 0 {
		return 0
	}
	return c.Retry(ctx, ids...)
}

// Remove deletes the named entries regardless of status. An attempt in
// flight for a removed entry finishes but its result is dropped. Returns
// the number removed.
func (c *Coordinator) Remove(ctx context.Context, ids ...string) int {
	c.ensureLoaded(ctx)

	var degradeErr error
	count := 0
	c.mu.Lock()
	for _, id := range ids {
		if _, ok := c.entries[id]; !ok {
			continue
		}
		if err := c.deleteLocked(ctx, id); err != nil && degradeErr == nil {
			degradeErr = err
		}
		c.removeFromMirrorLocked(id)
		count++
	}
	c.mu.Unlock()

	if degradeErr != nil {
		c.announceDegraded(ctx, degradeErr)
	}
	if count > 0 {
		c.logger.Info("entries removed", logging.Int("removed", count))
	}
	return count
}

// Clear removes every entry matching the given statuses, or the whole
// queue when none are given. Returns the number removed.
func (c *Coordinator) Clear(ctx context.Context, statuses ...queue.Status) int {
	c.ensureLoaded(ctx)

	match := func(queue.Status) bool { return true }
	if len(statuses) > 0 {
		set := make(map[queue.Status]struct{}, len(statuses))
		for _, status := range statuses {
			set[status] = struct{}{}
		}
		match = func(status queue.Status) bool {
			_, ok := set[status]
			return ok
		}
	}

	c.mu.RLock()
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if entry := c.entries[id]; entry != nil && match(entry.Status) {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()

	if len(ids) == 0 {
		return 0
	}
	return c.Remove(ctx, ids...)
}

// Snapshot returns ordered copies of every entry. Payload slices are
// shared; callers treat them as read-only.
func (c *Coordinator) Snapshot() []*queue.Entry {
	c.ensureLoaded(context.Background())

	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]*queue.Entry, 0, len(c.order))
	for _, id := range c.order {
		if entry := c.entries[id]; entry != nil {
			entries = append(entries, entry.Clone())
		}
	}
	return entries
}

// Stats reports entry counts by status.
func (c *Coordinator) Stats() Stats {
	c.ensureLoaded(context.Background())

	c.mu.RLock()
	defer c.mu.RUnlock()
	return statsOf(c.entries)
}

// Describe returns a copy of a single entry.
func (c *Coordinator) Describe(id string) (*queue.Entry, error) {
	c.ensureLoaded(context.Background())

	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "uploader", "describe", "no entry with id "+id, nil)
	}
	return entry.Clone(), nil
}

// Pause holds or releases the drain loop. Pausing never interrupts an
// attempt already in flight; releasing kicks a drain.
func (c *Coordinator) Pause(paused bool) {
	c.mu.Lock()
	changed := c.paused != paused
	c.paused = paused
	c.mu.Unlock()

	if !changed {
		return
	}
	if paused {
		c.logger.Info("uploads paused")
		return
	}
	c.logger.Info("uploads resumed")
	c.requestDrain("resume")
}

// Paused reports whether the operator hold is set.
func (c *Coordinator) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Drain asks for an immediate pass. The pass still honors the offline,
// paused, and single-flight guards; the return reports whether those
// guards would currently admit one.
func (c *Coordinator) Drain() bool {
	c.requestDrain("manual")
	c.mu.RLock()
	admit := c.running && !c.paused && !c.draining
	c.mu.RUnlock()
	return admit && c.online()
}

// Durable reports whether the session still writes the persistent store.
func (c *Coordinator) Durable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.durable
}

// Summary captures the coordinator state for status surfaces.
func (c *Coordinator) Summary() Summary {
	c.ensureLoaded(context.Background())

	c.mu.RLock()
	defer c.mu.RUnlock()
	summary := Summary{
		Running:   c.running,
		Paused:    c.paused,
		Draining:  c.draining,
		Durable:   c.durable,
		CurrentID: c.currentID,
		Stats:     statsOf(c.entries),
	}
	if c.lastErr != nil {
		summary.LastError = c.lastErr.Error()
	}
	return summary
}
