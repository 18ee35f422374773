package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/connectivity"
	"courier/internal/ingest"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/services/library"
	"courier/internal/uploader"
)

// Version is stamped by the build and surfaced in status output.
var Version = "dev"

// Daemon wires the long-running courier components together: the
// connectivity monitor, the upload coordinator, the watch-directory
// ingester, and the optional HTTP status listener. The IPC server calls
// into it for every client operation. One instance runs per host; the
// lock file under the data directory enforces that.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    queue.Store
	notifier notifications.Service

	library     *library.Client
	monitor     *connectivity.Monitor
	coordinator *uploader.Coordinator
	inspector   *ingest.Inspector
	watcher     *ingest.Watcher
	apiSrv      *apiServer

	lockPath string
	lock     *flock.Flock
	logPath  string

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	unsubConn func()
}

// New assembles a daemon around an opened queue store. The store may be
// the in-memory fallback; durable records which one the caller got. A nil
// notifier is replaced with one built from the configuration.
func New(cfg *config.Config, store queue.Store, durable bool, notifier notifications.Service, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	client, err := library.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build library client: %w", err)
	}

	levels := cfg.Logging.ComponentLevels
	monitor := connectivity.New(cfg, connectivity.NewProber(cfg, client),
		logging.ComponentLevelOverride(logger, levels, "connectivity"))
	coordinator := uploader.New(store, durable, client, monitor, notifier,
		logging.ComponentLevelOverride(logger, levels, "uploader"))
	inspector := ingest.NewInspector(cfg, logging.ComponentLevelOverride(logger, levels, "ingest"))

	lockPath := cfg.LockFilePath()
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logging.ComponentLevelOverride(logger, levels, "daemon"), "daemon"),
		store:       store,
		notifier:    notifier,
		library:     client,
		monitor:     monitor,
		coordinator: coordinator,
		inspector:   inspector,
		watcher:     ingest.NewWatcher(cfg, inspector, coordinator, logging.ComponentLevelOverride(logger, levels, "watcher")),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
		logPath:     logPath,
	}
	d.apiSrv, err = newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Start acquires the instance lock and launches every component. The
// watch directory and status API are optional surfaces: when one of them
// fails the daemon logs the problem and keeps running without it.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if dir := filepath.Dir(d.lockPath); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.monitor.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	d.unsubConn = d.monitor.OnChange(func(online bool) {
		d.publish(notifications.EventConnectivityChange, notifications.Payload{"online": online})
	})

	if err := d.coordinator.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start uploader: %w", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			d.logger.Warn("watch directory unavailable", logging.Error(err))
		}
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		d.logger.Warn("status api unavailable", logging.Error(err))
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("courier daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("durable", d.coordinator.Durable()))
	return nil
}

// teardown unwinds a partial Start.
func (d *Daemon) teardown() {
	if d.unsubConn != nil {
		d.unsubConn()
		d.unsubConn = nil
	}
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop halts background processing and releases the instance lock. The
// queue store stays open for the owner to close. An upload in flight is
// aborted and requeued without charging its retry budget.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.unsubConn != nil {
		d.unsubConn()
		d.unsubConn = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.coordinator.Stop()
	d.monitor.Stop()
	d.apiSrv.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("courier daemon stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Enqueue inspects the file at sourcePath and adds it to the upload
// queue, returning the stored entry.
func (d *Daemon) Enqueue(ctx context.Context, sourcePath string) (*queue.Entry, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue", "source path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue", "resolve source path", err)
	}

	item, err := d.inspector.Inspect(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(item.MimeType, "image/") {
		return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue",
			fmt.Sprintf("%s is not an image (%s)", item.FileName, item.MimeType), nil)
	}

	id, err := d.coordinator.Enqueue(ctx, item)
	if err != nil {
		return nil, err
	}
	return d.coordinator.Describe(id)
}

// ListQueue returns queue entries in drain order, optionally filtered by
// status.
func (d *Daemon) ListQueue(statuses ...queue.Status) []*queue.Entry {
	entries := d.coordinator.Snapshot()
	if len(statuses) == 0 {
		return entries
	}
	filtered := make([]*queue.Entry, 0, len(entries))
	for _, entry := range entries {
		for _, status := range statuses {
			if entry.Status == status {
				filtered = append(filtered, entry)
				break
			}
		}
	}
	return filtered
}

// DescribeQueue returns a single queue entry by id.
func (d *Daemon) DescribeQueue(id string) (*queue.Entry, error) {
	return d.coordinator.Describe(strings.TrimSpace(id))
}

// RetryQueue requeues errored entries with a fresh retry budget. With no
// ids every errored entry is retried.
func (d *Daemon) RetryQueue(ctx context.Context, ids ...string) int {
	if len(ids) == 0 {
		return d.coordinator.RetryAll(ctx)
	}
	return d.coordinator.Retry(ctx, ids...)
}

// RemoveQueue deletes the named entries regardless of status.
func (d *Daemon) RemoveQueue(ctx context.Context, ids ...string) int {
	return d.coordinator.Remove(ctx, ids...)
}

// ClearQueue removes entries wholesale, optionally only those in the
// given statuses.
func (d *Daemon) ClearQueue(ctx context.Context, statuses ...queue.Status) int {
	return d.coordinator.Clear(ctx, statuses...)
}

// Drain asks the uploader to run a pass now and reports whether the
// request was admitted.
func (d *Daemon) Drain() bool {
	return d.coordinator.Drain()
}

// Probe forces a connectivity check and returns the fresh verdict.
func (d *Daemon) Probe(ctx context.Context) bool {
	return d.monitor.CheckNow(ctx)
}

// Pause suspends or resumes upload passes. Queued entries are kept.
func (d *Daemon) Pause(paused bool) {
	d.coordinator.Pause(paused)
}

// Paused reports whether upload passes are suspended.
func (d *Daemon) Paused() bool {
	return d.coordinator.Paused()
}

// TestNotification sends a test event through the configured ntfy topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status aggregates the live state of every component.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      Version,
		QueueDBPath:  d.cfg.DatabasePath(),
		SocketPath:   d.cfg.Daemon.SocketPath,
		LockFilePath: d.lockPath,
		Uploader:     api.FromUploaderSummary(d.coordinator.Summary()),
		Connectivity: api.ConnectivityStatus{
			Online:        d.monitor.Online(),
			NetlinkActive: d.monitor.NetlinkActive(),
		},
		Watcher: api.WatcherStatus{
			Enabled:  d.cfg.WatchEnabled(),
			Running:  d.watcher != nil && d.watcher.Running(),
			WatchDir: d.cfg.Paths.WatchDir,
		},
	}
	if status.Running {
		status.StartedAt = api.FormatTime(d.startedAt)
	}
	return status
}

// LogPath returns the daemon log file path for this run.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound status API address, or empty when the API is
// disabled or not yet listening.
func (d *Daemon) APIAddr() string {
	return d.apiSrv.addr()
}

func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification publish failed",
			logging.String("event", string(event)), logging.Error(err))
	}
}
