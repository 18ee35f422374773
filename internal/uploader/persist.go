package uploader

import (
	"context"
	"errors"
	"time"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
)

// persistLocked writes entry to the durable store; callers hold c.mu and
// commit the mirror afterwards regardless of the result. The first write
// failure flips the session to memory-only and is returned so the caller
// can announce it once the lock is released; later calls are no-ops.
func (c *Coordinator) persistLocked(ctx context.Context, entry *queue.Entry) error {
	if !c.durable {
		return nil
	}
	if err := c.store.Put(ctx, entry); err != nil {
		c.markDegradedLocked(err)
		return err
	}
	return nil
}

// deleteLocked removes an entry from the durable store under the same
// degrade contract as persistLocked.
func (c *Coordinator) deleteLocked(ctx context.Context, id string) error {
	if !c.durable {
		return nil
	}
	if err := c.store.Delete(ctx, id); err != nil {
		c.markDegradedLocked(err)
		return err
	}
	return nil
}

func (c *Coordinator) markDegradedLocked(err error) {
	c.durable = false
	c.degraded = true
	c.lastErr = err
}

// degrade is the out-of-lock variant used when the initial load fails.
func (c *Coordinator) degrade(ctx context.Context, operation string, err error) {
	c.mu.Lock()
	already := c.degraded
	c.markDegradedLocked(err)
	c.mu.Unlock()
	if already {
		return
	}
	c.logger.Error("queue storage degraded to memory-only",
		logging.Error(err),
		logging.String("operation", operation),
		logging.String(logging.FieldEventType, "storage_degraded"),
		logging.Alert("storage_degraded"),
		logging.String(logging.FieldErrorHint, "check the queue database file and permissions"),
		logging.String(logging.FieldImpact, "queued uploads will not survive a restart"),
	)
	c.publish(ctx, notifications.EventStorageDegraded, notifications.Payload{"error": err.Error()})
}

// announceDegraded reports a persistLocked/deleteLocked degrade after the
// caller released c.mu. The flag flip inside the lock guarantees exactly
// one announcement per session.
func (c *Coordinator) announceDegraded(ctx context.Context, err error) {
	logging.WithContext(ctx, c.logger).Error("queue storage degraded to memory-only",
		logging.Error(err),
		logging.String(logging.FieldEventType, "storage_degraded"),
		logging.Alert("storage_degraded"),
		logging.String(logging.FieldErrorHint, "check the queue database file and permissions"),
		logging.String(logging.FieldImpact, "queued uploads will not survive a restart"),
	)
	c.publish(ctx, notifications.EventStorageDegraded, notifications.Payload{"error": err.Error()})
}

// armGraceLocked schedules removal of a success entry once the display
// window passes. Re-arming an already armed id is a no-op.
func (c *Coordinator) armGraceLocked(id string) {
	if _, ok := c.timers[id]; ok {
		return
	}
	c.timers[id] = time.AfterFunc(c.grace, func() {
		c.finishGrace(id)
	})
}

func (c *Coordinator) finishGrace(id string) {
	ctx := context.Background()
	c.mu.Lock()
	delete(c.timers, id)
	if !c.running {
		// Shutdown raced the timer; the entry stays in the store and the
		// next session re-arms the grace window at load.
		c.mu.Unlock()
		return
	}
	entry := c.entries[id]
	if entry == nil || entry.Status != queue.StatusSuccess {
		c.mu.Unlock()
		return
	}
	err := c.deleteLocked(ctx, id)
	c.removeFromMirrorLocked(id)
	c.mu.Unlock()

	if err != nil {
		c.announceDegraded(ctx, err)
	}
	c.logger.Debug("entry removed after success grace", logging.String(logging.FieldEntryID, id))
}

// removeFromMirrorLocked drops an entry from the map, the order slice, and
// any pending grace timer. Callers hold c.mu.
func (c *Coordinator) removeFromMirrorLocked(id string) {
	delete(c.entries, id)
	for i, candidate := range c.order {
		if candidate == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

func (c *Coordinator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, c.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("notification skipped during shutdown", logging.String(logging.FieldEventType, string(event)))
			return
		}
		logger.Debug("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, string(event)),
		)
	}
}
