package uploader

import (
	"context"
	"errors"
	"sort"
	"time"

	"courier/internal/logging"
	"courier/internal/queue"
)

// Start loads persisted entries, subscribes to connectivity transitions,
// and launches the drain goroutine. A startup drain is requested when the
// monitor already reports online.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("uploader already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.ensureLoaded(runCtx)

	c.mu.Lock()
	for _, id := range c.order {
		if entry := c.entries[id]; entry != nil && entry.Status == queue.StatusSuccess {
			c.armGraceLocked(id)
		}
	}
	stats := statsOf(c.entries)
	durable := c.durable
	if c.monitor != nil {
		c.unsub = c.monitor.OnChange(func(online bool) {
			if online {
				c.requestDrain("online")
			}
		})
	}
	c.mu.Unlock()

	c.logger.Info("uploader started",
		logging.Int("total", stats.Total),
		logging.Int("queued", stats.Queued),
		logging.Bool("durable", durable),
	)

	c.wg.Add(1)
	go c.run(runCtx)

	if c.online() {
		c.requestDrain("startup")
	}
	return nil
}

// Stop halts the drain loop and waits for any in-flight attempt to settle.
// A canceled mid-flight attempt returns its entry to queued without
// spending a retry, mirroring the crashed-session requeue at load.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	unsub := c.unsub
	c.unsub = nil
	timers := c.timers
	c.timers = make(map[string]*time.Timer)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, timer := range timers {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.logger.Info("uploader stopped")
}

// ensureLoaded reads the store exactly once, before the first mutation or
// snapshot. Entries stuck in uploading are returned to queued; a read
// failure degrades the session to memory-only instead of aborting.
func (c *Coordinator) ensureLoaded(ctx context.Context) {
	c.loadOnce.Do(func() {
		c.load(ctx)
	})
}

func (c *Coordinator) load(ctx context.Context) {
	entries, err := c.store.GetAll(ctx)
	if err != nil {
		c.degrade(ctx, "load queue", err)
		return
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	var requeued []*queue.Entry
	c.mu.Lock()
	for _, entry := range entries {
		if entry == nil || entry.ID == "" {
			continue
		}
		if entry.Status == queue.StatusUploading {
			entry.MarkQueued()
			requeued = append(requeued, entry)
		}
		c.entries[entry.ID] = entry
		c.order = append(c.order, entry.ID)
		if entry.Seq >= c.nextSeq {
			c.nextSeq = entry.Seq + 1
		}
	}
	var degradeErr error
	for _, entry := range requeued {
		if degradeErr = c.persistLocked(ctx, entry); degradeErr != nil {
			break
		}
	}
	c.mu.Unlock()

	if degradeErr != nil {
		c.announceDegraded(ctx, degradeErr)
	}
	if len(requeued) > 0 {
		c.logger.Info("requeued interrupted uploads", logging.Int("requeued", len(requeued)))
	}
	c.logger.Debug("queue loaded", logging.Int("total", len(entries)))
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
		}
		c.drainPass(ctx)
	}
}

// requestDrain schedules at most one pending pass; the channel holds a
// single token so bursts collapse.
func (c *Coordinator) requestDrain(reason string) {
	select {
	case c.kick <- struct{}{}:
		c.logger.Debug("drain requested", logging.String("reason", reason))
	default:
	}
}

func (c *Coordinator) online() bool {
	if c.monitor == nil {
		return false
	}
	return c.monitor.Online()
}
