package uploader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/queue"
	"courier/internal/services/library"
)

const (
	// maxRetries bounds automatic attempts per entry. Once RetryCount
	// reaches this value the entry pins at error until a manual retry.
	maxRetries = 3

	// successGrace is how long a finished entry stays visible before it is
	// removed from the mirror and the store.
	successGrace = 2 * time.Second
)

// Transport is the three-step upload exchange the coordinator drives for
// each entry. *library.Client satisfies it; tests supply scripted fakes.
type Transport interface {
	RequestDestination(ctx context.Context, req library.DestinationRequest) (*library.Destination, error)
	Transfer(ctx context.Context, dest *library.Destination, mimeType string, payload []byte) error
	RegisterAsset(ctx context.Context, req library.RegistrationRequest) (*library.Asset, error)
}

// Connectivity reports library reachability and transition callbacks.
// *connectivity.Monitor satisfies it.
type Connectivity interface {
	Online() bool
	OnChange(fn func(online bool)) func()
}

// Coordinator is the upload queue state machine. All mutations go through
// it; the durable store is written first and the in-memory mirror commits
// after, so observers never see a half-applied entry.
type Coordinator struct {
	store     queue.Store
	transport Transport
	monitor   Connectivity
	notifier  notifications.Service
	logger    *slog.Logger

	grace time.Duration

	mu        sync.RWMutex
	entries   map[string]*queue.Entry
	order     []string
	timers    map[string]*time.Timer
	nextSeq   int64
	running   bool
	paused    bool
	draining  bool
	durable   bool
	degraded  bool
	currentID string
	lastErr   error
	cancel    context.CancelFunc
	unsub     func()

	loadOnce sync.Once

	kick chan struct{}
	wg   sync.WaitGroup
}

// Option adjusts optional Coordinator behavior.
type Option func(*Coordinator)

// WithSuccessGrace overrides the post-success display window. Tests use
// short windows to observe removal without waiting out the default.
func WithSuccessGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.grace = d
		}
	}
}

// New constructs the coordinator. durable records whether store survives a
// restart (false when queue.OpenWithFallback degraded to memory). The
// notifier may be nil; logging falls back to a no-op logger.
func New(store queue.Store, durable bool, transport Transport, monitor Connectivity, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		transport: transport,
		monitor:   monitor,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "uploader"),
		grace:     successGrace,
		entries:   make(map[string]*queue.Entry),
		timers:    make(map[string]*time.Timer),
		nextSeq:   1,
		durable:   durable,
		kick:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats is the by-status census of the queue.
type Stats struct {
	Total     int
	Queued    int
	Uploading int
	Succeeded int
	Errored   int
}

// Summary is the coordinator slice of the daemon status surface.
type Summary struct {
	Running   bool
	Paused    bool
	Draining  bool
	Durable   bool
	CurrentID string
	LastError string
	Stats     Stats
}

func statsOf(entries map[string]*queue.Entry) Stats {
	stats := Stats{Total: len(entries)}
	for _, entry := range entries {
		switch entry.Status {
		case queue.StatusQueued:
			stats.Queued++
		case queue.StatusUploading:
			stats.Uploading++
		case queue.StatusSuccess:
			stats.Succeeded++
		case queue.StatusError:
			stats.Errored++
		}
	}
	return stats
}
