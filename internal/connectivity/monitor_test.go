package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"courier/internal/config"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProber) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProber) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestMonitor(prober Prober) *Monitor {
	cfg := config.Default()
	cfg.Connectivity.NetlinkEvents = false
	m := New(&cfg, prober, nil)
	m.linkState = func() bool { return true }
	m.interval = 20 * time.Millisecond
	m.timeout = 500 * time.Millisecond
	return m
}

func TestCheckNowReflectsProbeOutcome(t *testing.T) {
	prober := &fakeProber{err: errors.New("refused")}
	m := newTestMonitor(prober)

	if m.CheckNow(context.Background()) {
		t.Fatal("expected offline verdict for failing probe")
	}
	if m.Online() {
		t.Fatal("Online() should report offline")
	}

	prober.setErr(nil)
	if !m.CheckNow(context.Background()) {
		t.Fatal("expected online verdict for succeeding probe")
	}
	if !m.Online() {
		t.Fatal("Online() should report online")
	}
}

func TestOnChangeFiresOnTransitionsOnly(t *testing.T) {
	prober := &fakeProber{err: errors.New("down")}
	m := newTestMonitor(prober)

	var mu sync.Mutex
	var events []bool
	unsubscribe := m.OnChange(func(online bool) {
		mu.Lock()
		events = append(events, online)
		mu.Unlock()
	})
	defer unsubscribe()

	m.CheckNow(context.Background())
	m.CheckNow(context.Background())

	prober.setErr(nil)
	m.CheckNow(context.Background())
	m.CheckNow(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 transition events, got %v", events)
	}
	if events[0] != false || events[1] != true {
		t.Fatalf("expected offline then online, got %v", events)
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(prober)

	var calls int
	unsubscribe := m.OnChange(func(bool) { calls++ })
	unsubscribe()
	unsubscribe()

	m.CheckNow(context.Background())
	if calls != 0 {
		t.Fatalf("expected no callbacks after unsubscribe, got %d", calls)
	}
}

func TestLinkDownTrustedWithoutProbe(t *testing.T) {
	prober := &fakeProber{}
	m := newTestMonitor(prober)

	m.CheckNow(context.Background())
	if !m.Online() {
		t.Fatal("expected online after successful probe")
	}

	before := prober.callCount()
	m.linkState = func() bool { return false }
	m.handleLinkEvent("remove", "eth0")

	if m.Online() {
		t.Fatal("expected offline after losing the last link")
	}
	if prober.callCount() != before {
		t.Fatal("link-down transition must not trigger a probe")
	}
}

func TestLinkUpQueuesProbeInsteadOfTrusting(t *testing.T) {
	prober := &fakeProber{err: errors.New("captive portal")}
	m := newTestMonitor(prober)

	m.CheckNow(context.Background())
	before := prober.callCount()

	m.handleLinkEvent("add", "wlan0")

	if m.Online() {
		t.Fatal("link-up alone must not flip the monitor online")
	}
	if prober.callCount() != before {
		t.Fatal("handleLinkEvent should queue the probe, not run it inline")
	}

	select {
	case reason := <-m.kick:
		if reason != "link_event" {
			t.Fatalf("queued probe reason = %q, want link_event", reason)
		}
	default:
		t.Fatal("expected a queued probe request")
	}
}

func TestStartProbesUntilStopped(t *testing.T) {
	prober := &fakeProber{err: errors.New("down")}
	m := newTestMonitor(prober)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(m.Stop)

	deadline := time.After(5 * time.Second)
	for prober.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected repeated interval probes")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	prober.setErr(nil)
	deadline = time.After(5 * time.Second)
	for !m.Online() {
		select {
		case <-deadline:
			t.Fatal("expected monitor to go online after probes recover")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	m.Stop()
	m.Stop()
	settled := prober.callCount()
	time.Sleep(50 * time.Millisecond)
	if prober.callCount() != settled {
		t.Fatal("expected no probes after Stop")
	}
}

func TestMonitorNilSafety(t *testing.T) {
	var m *Monitor
	if m.Online() {
		t.Fatal("nil monitor should report offline")
	}
	if m.CheckNow(context.Background()) {
		t.Fatal("nil monitor CheckNow should report offline")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor returned error: %v", err)
	}
	m.OnChange(func(bool) {})()
}

func TestNewProberPrefersConfiguredURL(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Connectivity.ProbeURL = server.URL

	prober := NewProber(&cfg, nil)
	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("probe hits = %d, want 1", hits)
	}
}

func TestURLProberTreatsBadStatusAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Connectivity.ProbeURL = server.URL

	prober := NewProber(&cfg, nil)
	if err := prober.Probe(context.Background()); err == nil {
		t.Fatal("expected error for 502 probe response")
	}
}

func TestNewProberWithoutTargetAlwaysFails(t *testing.T) {
	cfg := config.Default()
	cfg.Connectivity.ProbeURL = ""

	prober := NewProber(&cfg, nil)
	if err := prober.Probe(context.Background()); err == nil {
		t.Fatal("expected error when no probe target is configured")
	}
}
