package uploader

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courier/internal/ingest"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/services/library"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeRequeued
	outcomePinned
	outcomeAborted
)

// drainPass uploads queued entries oldest-first until the queue empties,
// the monitor goes offline, a pause lands, or the session shuts down. A
// requeued failure stays oldest, so flat retries happen back to back.
func (c *Coordinator) drainPass(ctx context.Context) {
	if !c.beginPass() {
		return
	}
	defer c.endPass()

	drainID := uuid.NewString()
	ctx = services.WithRequestID(ctx, drainID)
	logger := c.logger.With(logging.String(logging.FieldCorrelationID, drainID))
	logger.Debug("drain pass started")

	started := time.Now()
	var succeeded, failed int
	aborted := false

	for !aborted {
		if ctx.Err() != nil || c.Paused() || !c.online() {
			break
		}
		entry := c.nextQueued()
		if entry == nil {
			break
		}
		switch c.processEntry(ctx, logger, entry) {
		case outcomeSucceeded:
			succeeded++
		case outcomePinned:
			failed++
		case outcomeAborted:
			aborted = true
		}
	}

	if succeeded == 0 && failed == 0 {
		logger.Debug("drain pass idle")
		return
	}

	duration := time.Since(started)
	logger.Info("drain finished",
		logging.Int("succeeded", succeeded),
		logging.Int("failed", failed),
		logging.Int("remaining", c.Stats().Queued),
		logging.Duration("duration", duration),
	)
	c.publish(ctx, notifications.EventQueueDrained, notifications.Payload{
		"succeeded": succeeded,
		"failed":    failed,
		"duration":  duration,
	})
}

func (c *Coordinator) beginPass() bool {
	if !c.online() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused || c.draining {
		return false
	}
	c.draining = true
	return true
}

func (c *Coordinator) endPass() {
	c.mu.Lock()
	c.draining = false
	c.mu.Unlock()
}

func (c *Coordinator) nextQueued() *queue.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if entry := c.entries[id]; entry != nil && entry.Status == queue.StatusQueued {
			return entry.Clone()
		}
	}
	return nil
}

// processEntry runs one attempt for one entry: mark uploading, run the
// protocol, apply the outcome. Each state change persists before the
// mirror commits.
func (c *Coordinator) processEntry(ctx context.Context, logger *slog.Logger, snapshot *queue.Entry) outcome {
	ctx = services.WithEntryID(ctx, snapshot.ID)
	entryLogger := logger.With(
		logging.String(logging.FieldEntryID, snapshot.ID),
		logging.String(logging.FieldFileName, snapshot.FileName),
	)

	uploading, ok := c.transition(ctx, snapshot.ID, func(e *queue.Entry) { e.MarkUploading() })
	if !ok {
		return outcomeSkipped
	}
	c.setCurrent(snapshot.ID)
	defer c.setCurrent("")

	entryLogger.Info("upload started",
		logging.String(logging.FieldStatus, string(queue.StatusUploading)),
		logging.Int(logging.FieldAttempt, uploading.RetryCount+1),
		logging.Int64("file_size_bytes", uploading.FileSize),
	)

	attemptStart := time.Now()
	assetID, err := c.upload(ctx, uploading)
	if err == nil {
		if _, ok := c.transition(ctx, snapshot.ID, func(e *queue.Entry) { e.MarkSuccess() }); ok {
			c.armGrace(snapshot.ID)
		}
		entryLogger.Info("upload succeeded",
			logging.String("asset_id", assetID),
			logging.Duration("upload_duration", time.Since(attemptStart)),
		)
		c.publish(ctx, notifications.EventUploadSucceeded, notifications.Payload{
			"fileName": snapshot.FileName,
			"assetId":  assetID,
		})
		return outcomeSucceeded
	}

	if ctx.Err() != nil {
		// Shutdown interrupted the attempt: requeue without spending a
		// retry, same as the crashed-session path at load.
		c.transition(context.Background(), snapshot.ID, func(e *queue.Entry) { e.MarkQueued() })
		entryLogger.Info("upload interrupted; entry requeued")
		return outcomeAborted
	}

	message := err.Error()
	updated, ok := c.transition(ctx, snapshot.ID, func(e *queue.Entry) {
		e.RetryCount++
		if e.RetryCount >= maxRetries {
			e.MarkError(message)
		} else {
			e.MarkQueued()
		}
	})
	if !ok {
		return outcomeSkipped
	}

	if updated.Status == queue.StatusError {
		c.setLastErr(err)
		entryLogger.Error("upload failed permanently",
			logging.Error(err),
			logging.String(logging.FieldStatus, string(updated.Status)),
			logging.Int("retry_count", updated.RetryCount),
			logging.String(logging.FieldEventType, "upload_failed"),
			logging.Alert("upload_failed"),
			logging.String(logging.FieldErrorHint, "run 'courier queue retry' to try again"),
		)
		c.publish(ctx, notifications.EventUploadFailed, notifications.Payload{
			"fileName": snapshot.FileName,
			"attempts": updated.RetryCount,
			"error":    message,
		})
		return outcomePinned
	}

	entryLogger.Warn("upload attempt failed; retrying",
		logging.Error(err),
		logging.String(logging.FieldStatus, string(updated.Status)),
		logging.Int("retry_count", updated.RetryCount),
		logging.String(logging.FieldEventType, "upload_attempt_failed"),
		logging.String(logging.FieldErrorHint, "transient failures retry automatically"),
	)
	return outcomeRequeued
}

// upload runs the three-step exchange and returns the registered asset id.
func (c *Coordinator) upload(ctx context.Context, entry *queue.Entry) (string, error) {
	dest, err := c.transport.RequestDestination(ctx, library.DestinationRequest{
		FileName:  entry.FileName,
		SizeBytes: entry.FileSize,
		MimeType:  entry.MimeType,
		Checksum:  entry.Checksum,
	})
	if err != nil {
		return "", services.Wrap(services.ErrUploadAttempt, "uploader", "request destination", entry.FileName, err)
	}
	if err := c.transport.Transfer(ctx, dest, entry.MimeType, entry.Payload); err != nil {
		return "", services.Wrap(services.ErrUploadAttempt, "uploader", "transfer", entry.FileName, err)
	}
	asset, err := c.transport.RegisterAsset(ctx, library.RegistrationRequest{
		UploadID:       dest.UploadID,
		FileName:       entry.FileName,
		Title:          ingest.DeriveTitle(entry.FileName),
		MimeType:       entry.MimeType,
		Checksum:       entry.Checksum,
		SizeBytes:      entry.FileSize,
		Width:          entry.Width,
		Height:         entry.Height,
		LastModifiedAt: entry.LastModifiedAt,
	})
	if err != nil {
		return "", services.Wrap(services.ErrUploadAttempt, "uploader", "register asset", entry.FileName, err)
	}
	if asset == nil {
		return "", nil
	}
	return asset.AssetID, nil
}

// transition applies fn to a clone of the live entry, persists the clone,
// then commits it to the mirror. ok is false when the entry was removed
// while the caller held its snapshot; the caller drops the result.
func (c *Coordinator) transition(ctx context.Context, id string, fn func(*queue.Entry)) (*queue.Entry, bool) {
	c.mu.Lock()
	live, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	clone := live.Clone()
	fn(clone)
	err := c.persistLocked(ctx, clone)
	c.entries[id] = clone
	c.mu.Unlock()

	if err != nil {
		c.announceDegraded(ctx, err)
	}
	return clone.Clone(), true
}

func (c *Coordinator) armGrace(id string) {
	c.mu.Lock()
	if c.running {
		c.armGraceLocked(id)
	}
	c.mu.Unlock()
}

func (c *Coordinator) setCurrent(id string) {
	c.mu.Lock()
	c.currentID = id
	c.mu.Unlock()
}

func (c *Coordinator) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
