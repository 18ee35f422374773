package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"courier/internal/config"
)

const userAgent = "Courier-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventUploadSucceeded    Event = "upload_succeeded"
	EventUploadFailed       Event = "upload_failed"
	EventQueueDrained       Event = "queue_drained"
	EventConnectivityChange Event = "connectivity_changed"
	EventStorageDegraded    Event = "storage_degraded"
	EventDaemonStarted      Event = "daemon_started"
	EventDaemonStopped      Event = "daemon_stopped"
	EventTest               Event = "test"
)

// Payload carries event-specific fields used to build the message.
type Payload map[string]any

// Service is the notification surface used by the coordinator and daemon.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		enabled:     enabledEvents(cfg),
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:    make(map[string]time.Time),
	}
}

func enabledEvents(cfg *config.Config) map[Event]bool {
	return map[Event]bool{
		EventUploadSucceeded:    cfg.Notifications.UploadSuccess,
		EventUploadFailed:       cfg.Notifications.UploadFailure,
		EventQueueDrained:       cfg.Notifications.QueueDrained,
		EventConnectivityChange: cfg.Notifications.Connectivity,
		EventStorageDegraded:    cfg.Notifications.Storage,
		EventDaemonStarted:      true,
		EventDaemonStopped:      true,
		EventTest:               true,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	enabled     map[Event]bool
	dedupWindow time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// Publish formats and sends one event. Disabled events and duplicates inside
// the dedup window return nil without a request.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil {
		return nil
	}
	if !n.enabled[event] {
		return nil
	}

	msg, ok := formatEvent(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}

	if event != EventTest && n.isDuplicate(event, msg.body) {
		return nil
	}

	return n.send(ctx, msg)
}

// isDuplicate records the send time for this event/body pair and reports
// whether an identical notification went out inside the dedup window.
func (n *ntfyService) isDuplicate(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}

	key := string(event) + "|" + body
	now := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()

	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.lastSent[key] = now
	return false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
