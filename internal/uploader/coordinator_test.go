package uploader_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"courier/internal/ingest"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services/library"
	"courier/internal/uploader"
)

type fakeMonitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	next   int
}

func newFakeMonitor(online bool) *fakeMonitor {
	return &fakeMonitor{online: online, subs: make(map[int]func(bool))}
}

func (f *fakeMonitor) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeMonitor) OnChange(fn func(online bool)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeMonitor) setOnline(online bool) {
	f.mu.Lock()
	if f.online == online {
		f.mu.Unlock()
		return
	}
	f.online = online
	subs := make([]func(bool), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

// fakeTransport scripts the three-step exchange. Failures are charged per
// file name on the destination request; active tracks step concurrency so
// tests can assert uploads never overlap.
type fakeTransport struct {
	mu        sync.Mutex
	order     []string
	failures  map[string]int
	failAll   bool
	active    int
	maxActive int
	release   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failures: make(map[string]int)}
}

func (f *fakeTransport) begin() {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
}

func (f *fakeTransport) end() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeTransport) RequestDestination(ctx context.Context, req library.DestinationRequest) (*library.Destination, error) {
	f.begin()
	defer f.end()
	f.mu.Lock()
	f.order = append(f.order, req.FileName)
	fail := f.failAll
	if !fail && f.failures[req.FileName] > 0 {
		f.failures[req.FileName]--
		fail = true
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("scripted failure")
	}
	return &library.Destination{UploadID: "up-" + req.FileName, UploadURL: "http://library/slot/" + req.FileName}, nil
}

func (f *fakeTransport) Transfer(ctx context.Context, dest *library.Destination, mimeType string, payload []byte) error {
	f.begin()
	defer f.end()
	f.mu.Lock()
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeTransport) RegisterAsset(ctx context.Context, req library.RegistrationRequest) (*library.Asset, error) {
	f.begin()
	defer f.end()
	return &library.Asset{AssetID: "asset-" + req.FileName}, nil
}

func (f *fakeTransport) setFailAll(fail bool) {
	f.mu.Lock()
	f.failAll = fail
	f.mu.Unlock()
}

func (f *fakeTransport) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *fakeTransport) callsFor(name string) int {
	count := 0
	for _, called := range f.calls() {
		if called == name {
			count++
		}
	}
	return count
}

func (f *fakeTransport) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *captureNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, seen := range n.events {
		if seen == event {
			total++
		}
	}
	return total
}

func testItem(name string) *ingest.Item {
	payload := []byte("payload for " + name)
	sum := sha256.Sum256(payload)
	return &ingest.Item{
		SourcePath:     "/drop/" + name,
		FileName:       name,
		Size:           int64(len(payload)),
		MimeType:       "image/png",
		LastModifiedAt: time.Now().UTC().Truncate(time.Second),
		Payload:        payload,
		Checksum:       hex.EncodeToString(sum[:]),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func startCoordinator(t *testing.T, store queue.Store, monitor *fakeMonitor, transport *fakeTransport, notifier notifications.Service) *uploader.Coordinator {
	t.Helper()
	c := uploader.New(store, true, transport, monitor, notifier, nil, uploader.WithSuccessGrace(20*time.Millisecond))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestOnlineEnqueueUploadsAndRemovesAfterGrace(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	c := startCoordinator(t, store, newFakeMonitor(true), transport, nil)

	id, err := c.Enqueue(context.Background(), testItem("cat.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue returned empty id")
	}

	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "entry was not removed after success grace")
	if store.Len() != 0 {
		t.Fatalf("store still holds %d entries after removal", store.Len())
	}
	if calls := transport.callsFor("cat.png"); calls != 1 {
		t.Fatalf("destination requests = %d, want 1", calls)
	}
	if _, err := c.Describe(id); err == nil {
		t.Fatal("Describe should fail after removal")
	}
}

func TestOfflineEnqueueWaitsForConnectivity(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	monitor := newFakeMonitor(false)
	c := startCoordinator(t, store, monitor, transport, nil)

	if _, err := c.Enqueue(context.Background(), testItem("dog.png")); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if calls := transport.calls(); len(calls) != 0 {
		t.Fatalf("expected zero protocol calls while offline, got %v", calls)
	}
	if stats := c.Stats(); stats.Queued != 1 {
		t.Fatalf("queued = %d, want 1", stats.Queued)
	}

	monitor.setOnline(true)
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "entry did not drain after going online")
}

func TestOfflineBacklogDrainsInOrderWithoutOverlap(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	monitor := newFakeMonitor(false)
	c := startCoordinator(t, store, monitor, transport, nil)

	names := []string{"a.png", "b.png", "c.png"}
	for _, name := range names {
		if _, err := c.Enqueue(context.Background(), testItem(name)); err != nil {
			t.Fatalf("Enqueue(%s) returned error: %v", name, err)
		}
	}

	monitor.setOnline(true)
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "backlog did not drain")

	calls := transport.calls()
	if len(calls) != len(names) {
		t.Fatalf("protocol calls = %v, want one per entry", calls)
	}
	for i, name := range names {
		if calls[i] != name {
			t.Fatalf("call order = %v, want %v", calls, names)
		}
	}
	if max := transport.maxConcurrent(); max != 1 {
		t.Fatalf("max concurrent protocol steps = %d, want 1", max)
	}
}

func TestAlwaysFailingUploadPinsAtError(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failAll = true
	notifier := &captureNotifier{}
	c := startCoordinator(t, store, newFakeMonitor(true), transport, notifier)

	id, err := c.Enqueue(context.Background(), testItem("broken.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		entry, err := c.Describe(id)
		return err == nil && entry.Status == queue.StatusError
	}, "entry never pinned at error")

	entry, err := c.Describe(id)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if entry.RetryCount != 3 {
		t.Fatalf("RetryCount = %d, want 3", entry.RetryCount)
	}
	if entry.ErrorMessage == "" {
		t.Fatal("ErrorMessage should record the failure")
	}
	if calls := transport.callsFor("broken.png"); calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}

	// Pinned entries never retry on their own.
	time.Sleep(50 * time.Millisecond)
	if calls := transport.callsFor("broken.png"); calls != 3 {
		t.Fatalf("attempts after pinning = %d, want 3", calls)
	}
	if stats := c.Stats(); stats.Errored != 1 {
		t.Fatalf("errored = %d, want 1", stats.Errored)
	}
	waitFor(t, time.Second, func() bool { return notifier.count(notifications.EventUploadFailed) == 1 },
		"expected a single final-failure notification")
}

func TestFailTwiceThenSucceed(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.failures["flaky.png"] = 2
	c := uploader.New(store, true, transport, newFakeMonitor(true), nil, nil, uploader.WithSuccessGrace(150*time.Millisecond))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)

	id, err := c.Enqueue(context.Background(), testItem("flaky.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		entry, err := c.Describe(id)
		return err == nil && entry.Status == queue.StatusSuccess
	}, "entry never reached success")

	entry, err := c.Describe(id)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if entry.RetryCount != 2 {
		t.Fatalf("RetryCount = %d, want 2", entry.RetryCount)
	}
	if calls := transport.callsFor("flaky.png"); calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}

	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "entry was not removed after grace")
}

func TestRestartRequeuesUploadingAndPreservesMetadata(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()

	interrupted := &queue.Entry{
		ID:         "entry-1",
		Seq:        1,
		FileName:   "mid-flight.png",
		FileSize:   42,
		MimeType:   "image/png",
		Payload:    []byte("mid-flight payload"),
		Checksum:   "abc123",
		Status:     queue.StatusUploading,
		RetryCount: 1,
		AddedAt:    time.Now().UTC().Add(-time.Minute),
		UpdatedAt:  time.Now().UTC(),
	}
	waiting := &queue.Entry{
		ID:        "entry-2",
		Seq:       2,
		FileName:  "waiting.png",
		FileSize:  7,
		MimeType:  "image/png",
		Payload:   []byte("waiting"),
		Checksum:  "def456",
		Status:    queue.StatusQueued,
		AddedAt:   time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.Put(ctx, interrupted); err != nil {
		t.Fatalf("seed Put returned error: %v", err)
	}
	if err := store.Put(ctx, waiting); err != nil {
		t.Fatalf("seed Put returned error: %v", err)
	}

	transport := newFakeTransport()
	c := startCoordinator(t, store, newFakeMonitor(false), transport, nil)

	snapshot := c.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snapshot))
	}
	first := snapshot[0]
	if first.ID != "entry-1" || first.Status != queue.StatusQueued {
		t.Fatalf("interrupted entry = %s/%s, want entry-1 requeued", first.ID, first.Status)
	}
	if first.Checksum != "abc123" || first.FileName != "mid-flight.png" || first.FileSize != 42 {
		t.Fatal("interrupted entry metadata was not preserved")
	}
	if first.RetryCount != 1 {
		t.Fatalf("requeue must not touch RetryCount, got %d", first.RetryCount)
	}

	// The requeue is persisted so a crash before the next drain is safe.
	persisted, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if persisted[0].Status != queue.StatusQueued {
		t.Fatalf("persisted status = %s, want queued", persisted[0].Status)
	}
}

func TestStaleSuccessRemovedAfterRestart(t *testing.T) {
	store := queue.NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, &queue.Entry{
		ID:       "done-1",
		Seq:      1,
		FileName: "done.png",
		Payload:  []byte("done"),
		Status:   queue.StatusSuccess,
	}); err != nil {
		t.Fatalf("seed Put returned error: %v", err)
	}

	c := startCoordinator(t, store, newFakeMonitor(false), newFakeTransport(), nil)

	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 && store.Len() == 0 },
		"stale success entry was not cleaned up after restart")
}

func TestStopMidUploadRequeuesWithoutSpendingRetry(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	transport.release = make(chan struct{})
	c := uploader.New(store, true, transport, newFakeMonitor(true), nil, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	id, err := c.Enqueue(context.Background(), testItem("stuck.png"))
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		entry, err := c.Describe(id)
		return err == nil && entry.Status == queue.StatusUploading
	}, "entry never reached uploading")

	c.Stop()

	persisted, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll returned error: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("persisted entries = %d, want 1", len(persisted))
	}
	if persisted[0].Status != queue.StatusQueued {
		t.Fatalf("status after interrupted stop = %s, want queued", persisted[0].Status)
	}
	if persisted[0].RetryCount != 0 {
		t.Fatalf("interrupted attempt must not spend a retry, RetryCount = %d", persisted[0].RetryCount)
	}
}

func TestPauseHoldsDrainsUntilResumed(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	c := startCoordinator(t, store, newFakeMonitor(true), transport, nil)

	c.Pause(true)
	if !c.Paused() {
		t.Fatal("Paused() should report the hold")
	}
	if _, err := c.Enqueue(context.Background(), testItem("held.png")); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if calls := transport.calls(); len(calls) != 0 {
		t.Fatalf("expected no uploads while paused, got %v", calls)
	}

	c.Pause(false)
	waitFor(t, 5*time.Second, func() bool { return c.Stats().Total == 0 }, "entry did not drain after resume")
}

func TestDrainReportsGuardState(t *testing.T) {
	store := queue.NewMemoryStore()
	monitor := newFakeMonitor(false)
	c := startCoordinator(t, store, monitor, newFakeTransport(), nil)

	if c.Drain() {
		t.Fatal("Drain should report false while offline")
	}
	monitor.setOnline(true)
	waitFor(t, time.Second, func() bool { return c.Drain() }, "Drain should report true once online and idle")
}

func TestDrainSummaryNotification(t *testing.T) {
	store := queue.NewMemoryStore()
	transport := newFakeTransport()
	monitor := newFakeMonitor(false)
	notifier := &captureNotifier{}
	c := startCoordinator(t, store, monitor, transport, notifier)

	for i := 0; i < 2; i++ {
		if _, err := c.Enqueue(context.Background(), testItem(fmt.Sprintf("batch-%d.png", i))); err != nil {
			t.Fatalf("Enqueue returned error: %v", err)
		}
	}

	monitor.setOnline(true)
	waitFor(t, 5*time.Second, func() bool { return notifier.count(notifications.EventQueueDrained) >= 1 },
		"drain summary notification never arrived")
	waitFor(t, 5*time.Second, func() bool { return notifier.count(notifications.EventUploadSucceeded) == 2 },
		"per-upload notifications never arrived")
}
