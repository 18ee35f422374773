package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"courier/internal/config"
	"courier/internal/fileutil"
	"courier/internal/logging"
	"courier/internal/services"
)

const settleTick = 250 * time.Millisecond

// pendingFile tracks a file waiting to settle. lastSize forces one stat
// comparison before the settle clock can expire.
type pendingFile struct {
	lastChange time.Time
	lastSize   int64
}

// Watcher ingests files dropped into the configured watch folder.
type Watcher struct {
	dir        string
	archiveDir string
	settle     time.Duration
	inspector  *Inspector
	enqueuer   Enqueuer
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher returns nil when no watch folder is configured.
func NewWatcher(cfg *config.Config, inspector *Inspector, enqueuer Enqueuer, logger *slog.Logger) *Watcher {
	if cfg == nil || !cfg.WatchEnabled() {
		return nil
	}
	settle := time.Duration(cfg.Uploader.WatchSettleMS) * time.Millisecond
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &Watcher{
		dir:        cfg.Paths.WatchDir,
		archiveDir: cfg.Paths.ArchiveDir,
		settle:     settle,
		inspector:  inspector,
		enqueuer:   enqueuer,
		logger:     logging.NewComponentLogger(logger, "watcher"),
	}
}

// Start scans the watch folder once and begins following fsnotify events.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "watcher", "start", "create watch folder", err)
	}
	if w.archiveDir != "" {
		if err := os.MkdirAll(w.archiveDir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "watcher", "start", "create archive folder", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watcher", "start", "create fs watcher", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return services.Wrap(services.ErrConfiguration, "watcher", "start",
			fmt.Sprintf("watch %s", w.dir), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.run(runCtx, fsw)

	w.logger.Info("watch folder active",
		logging.String(logging.FieldEventType, "watch_folder_started"),
		logging.String("watch_dir", w.dir),
		logging.String("archive_dir", w.archiveDir),
		logging.Duration("settle_window", w.settle),
	)
	return nil
}

// Stop halts the watcher and waits for in-flight ingestion to finish.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	w.logger.Info("watch folder stopped",
		logging.String(logging.FieldEventType, "watch_folder_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	pending := make(map[string]*pendingFile)
	w.seedExisting(pending)

	ticker := time.NewTicker(settleTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(ev, pending)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch folder error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_folder_error"),
				logging.String(logging.FieldImpact, "dropped files may be picked up late"),
			)
		case <-ticker.C:
			w.settlePass(ctx, pending)
		}
	}
}

// seedExisting queues everything already in the folder so files dropped while
// the daemon was down are ingested on startup. They go through the same
// settle window as fresh events.
func (w *Watcher) seedExisting(pending map[string]*pendingFile) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("could not scan watch folder",
			logging.Error(err),
			logging.String("watch_dir", w.dir),
		)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !watchableFile(entry.Name()) {
			continue
		}
		pending[filepath.Join(w.dir, entry.Name())] = &pendingFile{
			lastChange: time.Now(),
			lastSize:   -1,
		}
	}
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event, pending map[string]*pendingFile) {
	if !watchableFile(filepath.Base(ev.Name)) {
		return
	}
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		entry, ok := pending[ev.Name]
		if !ok {
			entry = &pendingFile{lastSize: -1}
			pending[ev.Name] = entry
		}
		entry.lastChange = time.Now()
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(pending, ev.Name)
	}
}

// settlePass ingests every pending file whose size has held still for the
// settle window.
func (w *Watcher) settlePass(ctx context.Context, pending map[string]*pendingFile) {
	now := time.Now()
	for path, entry := range pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(pending, path)
			continue
		}
		if info.Size() != entry.lastSize {
			entry.lastSize = info.Size()
			entry.lastChange = now
			continue
		}
		if now.Sub(entry.lastChange) < w.settle {
			continue
		}
		delete(pending, path)
		w.process(ctx, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	item, err := w.inspector.Inspect(ctx, path)
	if err != nil {
		w.logger.Warn("skipping file that failed inspection",
			logging.Error(err),
			logging.String(logging.FieldFileName, filepath.Base(path)),
			logging.String(logging.FieldEventType, "ingest_failed"),
			logging.String(logging.FieldErrorHint, "check the file is a readable image under the size limit"),
			logging.String(logging.FieldImpact, "file left in watch folder"),
		)
		return
	}

	id, err := w.enqueuer.Enqueue(ctx, item)
	if err != nil {
		w.logger.Warn("could not queue dropped file",
			logging.Error(err),
			logging.String(logging.FieldFileName, item.FileName),
			logging.String(logging.FieldEventType, "ingest_failed"),
			logging.String(logging.FieldImpact, "file left in watch folder"),
		)
		return
	}

	w.logger.Info("queued dropped file",
		logging.String(logging.FieldEventType, "file_ingested"),
		logging.String(logging.FieldEntryID, id),
		logging.String(logging.FieldFileName, item.FileName),
		logging.Int64("file_size_bytes", item.Size),
	)

	w.archive(path)
}

// archive moves an ingested file out of the watch folder so it is not
// re-queued on the next startup scan.
func (w *Watcher) archive(path string) {
	if w.archiveDir == "" {
		return
	}
	dst := uniqueDestination(w.archiveDir, filepath.Base(path))
	if err := fileutil.MoveFile(path, dst); err != nil {
		w.logger.Warn("could not archive ingested file",
			logging.Error(err),
			logging.String(logging.FieldFileName, filepath.Base(path)),
			logging.String(logging.FieldImpact, "file may be re-queued on next startup"),
		)
		return
	}
	w.logger.Debug("archived ingested file",
		logging.String(logging.FieldFileName, filepath.Base(path)),
		logging.String("archive_path", dst),
	)
}

// uniqueDestination picks an archive path that does not collide with an
// earlier file of the same name.
func uniqueDestination(dir, name string) string {
	dst := filepath.Join(dir, name)
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return dst
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := time.Now().UTC().Format("20060102T150405")
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, stamp, ext))
}

// watchableFile filters the folder to visible image files.
func watchableFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := extensionMime[strings.ToLower(filepath.Ext(name))]
	return ok
}
