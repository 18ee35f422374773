package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/textutil"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// Monitor tracks whether the library backend is reachable and notifies
// subscribers on every transition.
type Monitor struct {
	prober    Prober
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration
	linkState func() bool
	watcher   *linkWatcher
	kick      chan string

	mu      sync.Mutex
	online  bool
	known   bool
	subs    map[int64]func(online bool)
	nextSub int64
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a monitor around the given reachability prober. The netlink
// watcher is attached when config enables it; probing works without it.
func New(cfg *config.Config, prober Prober, logger *slog.Logger) *Monitor {
	m := &Monitor{
		prober:    prober,
		logger:    logging.NewComponentLogger(logger, "connectivity"),
		interval:  defaultProbeInterval,
		timeout:   defaultProbeTimeout,
		linkState: hasActiveLink,
		kick:      make(chan string, 1),
		subs:      make(map[int64]func(online bool)),
	}
	if cfg != nil {
		if cfg.Connectivity.ProbeInterval > 0 {
			m.interval = time.Duration(cfg.Connectivity.ProbeInterval) * time.Second
		}
		if cfg.Connectivity.ProbeTimeout > 0 {
			m.timeout = time.Duration(cfg.Connectivity.ProbeTimeout) * time.Second
		}
		if cfg.Connectivity.NetlinkEvents {
			m.watcher = newLinkWatcher(m.logger, m.handleLinkEvent)
		}
	}
	return m
}

// Start seeds the state from the host link hint, begins interval probing, and
// attaches the netlink watcher when one is configured. The first probe runs
// immediately in the background; callers needing a settled answer can use
// CheckNow.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.online = m.linkState()
	m.known = true
	hint := m.online
	m.mu.Unlock()

	m.logger.Info("connectivity monitor started",
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
		logging.Bool("link_hint", hint),
		logging.Duration("probe_interval", m.interval),
		logging.Duration("probe_timeout", m.timeout),
	)

	if m.watcher != nil {
		_ = m.watcher.Start(runCtx)
	}

	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop halts probing and the netlink watcher. Safe to call more than once.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if m.watcher != nil {
		m.watcher.Stop()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.logger.Info("connectivity monitor stopped",
		logging.String(logging.FieldEventType, "connectivity_monitor_stopped"),
	)
}

// Online reports the current reachability verdict.
func (m *Monitor) Online() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// NetlinkActive reports whether the udev link watcher holds a connection.
// False means reachability changes are only noticed by interval probes.
func (m *Monitor) NetlinkActive() bool {
	if m == nil || m.watcher == nil {
		return false
	}
	return m.watcher.Running()
}

// CheckNow runs a probe immediately and returns the resulting verdict.
// Subscribers are notified if the state flipped.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	if m == nil {
		return false
	}
	return m.evaluate(ctx, "manual_probe")
}

// OnChange registers a callback fired on every online/offline transition with
// the new state. The returned function removes the subscription; calling it
// more than once is harmless.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	if m == nil || fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.evaluate(ctx, "startup_probe")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evaluate(ctx, "interval_probe")
		case reason := <-m.kick:
			m.evaluate(ctx, reason)
		}
	}
}

// handleLinkEvent reacts to a netlink interface change. Losing the last
// active link is trusted immediately; a present link still has to pass a
// probe before the monitor reports online.
func (m *Monitor) handleLinkEvent(action, iface string) {
	if !m.linkState() {
		m.setOnline(false, "link_down")
		return
	}
	m.requestProbe("link_event")
}

// requestProbe nudges the probe loop without blocking; a pending nudge means
// one probe is already queued.
func (m *Monitor) requestProbe(reason string) {
	select {
	case m.kick <- reason:
	default:
	}
}

func (m *Monitor) evaluate(ctx context.Context, reason string) bool {
	online := m.probeOnce(ctx)
	m.setOnline(online, reason)
	return online
}

func (m *Monitor) probeOnce(ctx context.Context) bool {
	if m.prober == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	err := m.prober.Probe(probeCtx)
	elapsed := time.Since(started)

	if err != nil {
		m.logger.Debug("reachability probe failed",
			logging.Error(err),
			logging.Duration("probe_duration", elapsed),
		)
		return false
	}

	m.logger.Debug("reachability probe succeeded",
		logging.Duration("probe_duration", elapsed),
	)
	return true
}

// setOnline records the verdict and, on a transition, notifies subscribers.
// Callbacks run outside the lock so they may call back into the monitor.
func (m *Monitor) setOnline(online bool, reason string) {
	m.mu.Lock()
	if m.known && m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.known = true
	subs := make([]func(online bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	attrs := append(logging.DecisionAttrs("reachability", textutil.Ternary(online, "online", "offline"), reason),
		logging.String(logging.FieldEventType, "connectivity_changed"),
	)
	m.logger.Info("reachability decision", logging.Args(attrs...)...)

	for _, fn := range subs {
		fn(online)
	}
}
