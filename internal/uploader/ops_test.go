package uploader_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courier/internal/ingest"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/uploader"
)

// flakyStore wraps the memory store with switchable write failures so tests
// can exercise the degrade-to-memory path.
type flakyStore struct {
	mu       sync.Mutex
	inner    *queue.MemoryStore
	failPuts bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: queue.NewMemoryStore()}
}

func (s *flakyStore) setFailPuts(fail bool) {
	s.mu.Lock()
	s.failPuts = fail
	s.mu.Unlock()
}

func (s *flakyStore) GetAll(ctx context.Context) ([]*queue.Entry, error) {
	return s.inner.GetAll(ctx)
}

func (s *flakyStore) Put(ctx context.Context, entry *queue.Entry) error {
	s.mu.Lock()
	fail := s.failPuts
	s.mu.Unlock()
	if fail {
		return services.Wrap(services.ErrStorageWrite, "queue", "put", entry.ID, errors.New("disk full"))
	}
	return s.inner.Put(ctx, entry)
}

func (s *flakyStore) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

func (s *flakyStore) Close() error { return s.inner.Close() }

func TestManualRetryResetsPinnedEntry(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failAll = true
	c := startCoordinator(t, store, newFakeMonitor(true), transport, nil)

	id, err := c.Enqueue(context.Background(), testItem("pinned.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		entry, err := c.Describe(id)
		return err == nil && entry.Status == queue.StatusError
	}, "entry never pinned at error")

	transport.setFailAll(false)
	if requeued := c.Retry(context.Background(), id); requeued != 1 {
		t.Fatalf("Retry requeued %d entries, want 1", requeued)
	}

	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "retried entry never drained")
	if calls := transport.callsFor("pinned.png"); calls != 4 {
		t.Fatalf("attempts = %d, want 3 failures plus 1 success", calls)
	}
}

func TestRetryResetsRetryBudget(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failAll = true
	c := startCoordinator(t, store, newFakeMonitor(true), transport, nil)

	id, err := c.Enqueue(context.Background(), testItem("budget.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		entry, err := c.Describe(id)
		return err == nil && entry.Status == queue.StatusError
	}, "entry never pinned at error")

	// A manual retry grants a full fresh budget, not the leftover one.
	c.Retry(context.Background(), id)
	waitFor(t, 5*time.Second, func() bool { return transport.callsFor("budget.png") == 6 },
		"retried entry did not get a fresh attempt budget")

	entry, err := c.Describe(id)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if entry.Status != queue.StatusError || entry.RetryCount != 3 {
		t.Fatalf("entry = %s/%d, want error/3 after exhausting the fresh budget", entry.Status, entry.RetryCount)
	}
}

func TestRetryIgnoresNonErrorEntries(t *testing.T) {
	store := queue.NewMemoryStore()
	c := startCoordinator(t, store, newFakeMonitor(false), newFakeTransport(), nil)

	id, err := c.Enqueue(context.Background(), testItem("waiting.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	if requeued := c.Retry(context.Background(), id); requeued != 0 {
		t.Fatalf("Retry touched a queued entry, requeued = %d", requeued)
	}
	if requeued := c.Retry(context.Background(), "no-such-id"); requeued != 0 {
		t.Fatalf("Retry on unknown id requeued %d entries", requeued)
	}
}

func TestRetryAllRequeuesEveryPinnedEntry(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failAll = true
	c := startCoordinator(t, store, newFakeMonitor(true), transport, nil)

	for _, name := range []string{"one.png", "two.png"} {
		if _, err := c.Enqueue(context.Background(), testItem(name)); err != nil {
			t.Fatalf("Enqueue(%s) returned error: %v", name, err)
		}
	}
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Errored == 2 }, "entries never pinned")

	transport.setFailAll(false)
	if requeued := c.RetryAll(context.Background()); requeued != 2 {
		t.Fatalf("RetryAll requeued %d entries, want 2", requeued)
	}
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "retried entries never drained")
}

func TestRemoveDeletesFromQueueAndStore(t *testing.T) {
	store := queue.NewMemoryStore()
	c := startCoordinator(t, store, newFakeMonitor(false), newFakeTransport(), nil)

	keepID, err := c.Enqueue(context.Background(), testItem("keep.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	dropID, err := c.Enqueue(context.Background(), testItem("drop.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	if removed := c.Remove(context.Background(), dropID); removed != 1 {
		t.Fatalf("Remove removed %d entries, want 1", removed)
	}
	if removed := c.Remove(context.Background(), dropID); removed != 0 {
		t.Fatalf("second Remove removed %d entries, want 0", removed)
	}

	snapshot := c.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != keepID {
		t.Fatalf("snapshot after remove = %v, want only %s", snapshot, keepID)
	}
	if store.Len() != 1 {
		t.Fatalf("store length = %d, want 1", store.Len())
	}
}

func TestClearFiltersByStatus(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failAll = true
	monitor := newFakeMonitor(true)
	c := startCoordinator(t, store, monitor, transport, nil)

	pinnedID, err := c.Enqueue(context.Background(), testItem("pinned.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Errored == 1 }, "entry never pinned")

	monitor.setOnline(false)
	queuedID, err := c.Enqueue(context.Background(), testItem("queued.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	if cleared := c.Clear(context.Background(), queue.StatusError); cleared != 1 {
		t.Fatalf("Clear(error) removed %d entries, want 1", cleared)
	}
	if _, err := c.Describe(pinnedID); err == nil {
		t.Fatal("pinned entry should be gone after Clear(error)")
	}
	if _, err := c.Describe(queuedID); err != nil {
		t.Fatalf("queued entry should survive Clear(error): %v", err)
	}

	if cleared := c.Clear(context.Background()); cleared != 1 {
		t.Fatalf("Clear() removed %d entries, want 1", cleared)
	}
	if stats := c.Stats(); stats.Total != 0 {
		t.Fatalf("total after full clear = %d, want 0", stats.Total)
	}
}

func TestEnqueueValidation(t *testing.T) {
	c := uploader.New(queue.NewMemoryStore(), true, newFakeTransport(), newFakeMonitor(false), nil, nil)

	cases := []struct {
		name string
		item *ingest.Item
	}{
		{"nil item", nil},
		{"blank file name", &ingest.Item{FileName: "   ", Payload: []byte("x")}},
		{"empty payload", &ingest.Item{FileName: "empty.png"}},
	}
	for _, tc := range cases {
		if _, err := c.Enqueue(context.Background(), tc.item); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: err = %v, want validation marker", tc.name, err)
		}
	}
}

func TestSnapshotMirrorsStore(t *testing.T) {
	store := queue.NewMemoryStore()
	c := startCoordinator(t, store, newFakeMonitor(false), newFakeTransport(), nil)

	var ids []string
	for _, name := range []string{"first.png", "second.png", "third.png"} {
		id, err := c.Enqueue(context.Background(), testItem(name))
		if err != nil {
			t.Fatalf("Enqueue(%s) returned error: %v", name, err)
		}
		ids = append(ids, id)
	}
	c.Remove(context.Background(), ids[1])

	snapshot := c.Snapshot()
	persisted, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(snapshot) != 2 || len(persisted) != 2 {
		t.Fatalf("snapshot/store lengths = %d/%d, want 2/2", len(snapshot), len(persisted))
	}
	for i := range snapshot {
		if snapshot[i].ID != persisted[i].ID {
			t.Fatalf("order mismatch at %d: memory %s vs store %s", i, snapshot[i].ID, persisted[i].ID)
		}
	}
	if snapshot[0].ID != ids[0] || snapshot[1].ID != ids[2] {
		t.Fatalf("snapshot ids = %s,%s want %s,%s", snapshot[0].ID, snapshot[1].ID, ids[0], ids[2])
	}
}

func TestStoreWriteFailureDegradesToMemory(t *testing.T) {
	store := newFlakyStore()
	notifier := &captureNotifier{}
	monitor := newFakeMonitor(false)
	transport := newFakeTransport()
	c := startCoordinator(t, store, monitor, transport, notifier)

	if !c.Durable() {
		t.Fatal("coordinator should start durable")
	}

	store.setFailPuts(true)
	id, err := c.Enqueue(context.Background(), testItem("survivor.png"))
	if err != nil {
		t.Fatalf("Enqueue must not surface the storage failure, got: %v", err)
	}
	if c.Durable() {
		t.Fatal("coordinator should degrade to memory-only after a write failure")
	}
	if _, err := c.Describe(id); err != nil {
		t.Fatalf("entry should remain operable in memory: %v", err)
	}

	// Degradation is announced once, not per failed write.
	if _, err := c.Enqueue(context.Background(), testItem("another.png")); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	waitFor(t, time.Second, func() bool { return notifier.count(notifications.EventStorageDegraded) == 1 },
		"expected exactly one storage degradation notification")
	time.Sleep(20 * time.Millisecond)
	if got := notifier.count(notifications.EventStorageDegraded); got != 1 {
		t.Fatalf("storage degradation notifications = %d, want 1", got)
	}

	// The degraded queue still drains.
	monitor.setOnline(true)
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "degraded queue did not drain")
}

func TestSummaryReportsLifecycle(t *testing.T) {
	store := queue.NewMemoryStore()
	c := uploader.New(store, true, newFakeTransport(), newFakeMonitor(false), nil, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	summary := c.Summary()
	if !summary.Running || summary.Paused || !summary.Durable {
		t.Fatalf("summary = %+v, want running, unpaused, durable", summary)
	}

	c.Stop()
	c.Stop()
	if summary := c.Summary(); summary.Running {
		t.Fatal("summary should report stopped after Stop")
	}
}
