package connectivity

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"courier/internal/logging"
)

// linkWatcher listens for udev netlink events on the net subsystem and
// forwards interface changes to the monitor. It reacts to cable pulls and
// Wi-Fi drops within moments instead of waiting for the next interval probe.
type linkWatcher struct {
	logger  *slog.Logger
	handler func(action, iface string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newLinkWatcher(logger *slog.Logger, handler func(action, iface string)) *linkWatcher {
	return &linkWatcher{
		logger:  logging.NewComponentLogger(logger, "link-watcher"),
		handler: handler,
	}
}

// Start connects to the udev netlink socket and begins forwarding events.
// A connection failure is logged and swallowed; the monitor keeps working on
// interval probes alone.
func (w *linkWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; relying on interval probes",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to open netlink sockets"),
			logging.String(logging.FieldImpact, "link change hints unavailable"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.watchLoop(ctx, quit)

	w.logger.Info("link watcher started",
		logging.String(logging.FieldEventType, "link_watcher_started"),
	)
	return nil
}

// Stop shuts down the watcher. Safe on nil and unstarted watchers.
func (w *linkWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("link watcher stopped",
		logging.String(logging.FieldEventType, "link_watcher_stopped"),
	)
}

// Running reports whether the watcher holds a netlink connection.
func (w *linkWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *linkWatcher) watchLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildLinkMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("link watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "link_watcher_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "link change hints may be delayed"),
			)
		}
	}
}

func (w *linkWatcher) handleEvent(uevent netlink.UEvent) {
	iface := extractInterface(uevent)
	if iface == "" {
		w.logger.Debug("ignoring event without interface name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if iface == "lo" {
		return
	}

	w.logger.Debug("link event",
		logging.String("action", string(uevent.Action)),
		logging.String("interface", iface),
	)

	if w.handler != nil {
		w.handler(string(uevent.Action), iface)
	}
}

// buildLinkMatcher matches interface lifecycle events:
// SUBSYSTEM=net, ACTION=add|remove|change|move.
func buildLinkMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

// extractInterface gets the interface name from a uevent.
func extractInterface(uevent netlink.UEvent) string {
	if iface := uevent.Env["INTERFACE"]; iface != "" {
		return iface
	}

	// Fall back to the DEVPATH tail (e.g. /devices/.../net/wlan0)
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
