package connectivity

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestBuildLinkMatcher(t *testing.T) {
	matcher := buildLinkMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	for _, event := range []netlink.UEvent{
		{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "net"}},
		{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "net"}},
		{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "net"}},
	} {
		if !matcher.Evaluate(event) {
			t.Errorf("expected matcher to accept %s event on net subsystem", event.Action)
		}
	}

	blockEvent := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if matcher.Evaluate(blockEvent) {
		t.Error("expected matcher to reject non-net subsystem")
	}
}

func TestExtractInterface(t *testing.T) {
	event := netlink.UEvent{
		Env: map[string]string{"INTERFACE": "wlan0"},
	}
	if got := extractInterface(event); got != "wlan0" {
		t.Fatalf("interface = %q, want wlan0", got)
	}

	event = netlink.UEvent{
		Env: map[string]string{"DEVPATH": "/devices/pci0000:00/0000:00:14.3/net/wlp2s0"},
	}
	if got := extractInterface(event); got != "wlp2s0" {
		t.Fatalf("interface from DEVPATH = %q, want wlp2s0", got)
	}

	if got := extractInterface(netlink.UEvent{Env: map[string]string{}}); got != "" {
		t.Fatalf("interface = %q, want empty for event without names", got)
	}
}

func TestLinkWatcherHandleEvent(t *testing.T) {
	var gotAction, gotIface string
	var calls int
	watcher := newLinkWatcher(nil, func(action, iface string) {
		calls++
		gotAction = action
		gotIface = iface
	})

	watcher.handleEvent(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{},
	})
	if calls != 0 {
		t.Fatal("handler should not fire for events without an interface")
	}

	watcher.handleEvent(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"INTERFACE": "lo"},
	})
	if calls != 0 {
		t.Fatal("handler should not fire for loopback events")
	}

	watcher.handleEvent(netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"INTERFACE": "eth0"},
	})
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if gotAction != "remove" || gotIface != "eth0" {
		t.Fatalf("handler got (%q, %q), want (remove, eth0)", gotAction, gotIface)
	}
}

func TestLinkWatcherLifecycleSafety(t *testing.T) {
	var w *linkWatcher
	w.Stop()
	if w.Running() {
		t.Fatal("nil watcher should not report running")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil watcher returned error: %v", err)
	}

	watcher := newLinkWatcher(nil, nil)
	watcher.Stop()
	watcher.Stop()
	if watcher.Running() {
		t.Fatal("unstarted watcher should not report running")
	}
}
