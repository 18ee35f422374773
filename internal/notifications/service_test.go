package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("noop service returned error: %v", err)
	}
}

func allEventsConfig(serverURL string) config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = serverURL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.UploadSuccess = true
	cfg.Notifications.UploadFailure = true
	cfg.Notifications.QueueDrained = true
	cfg.Notifications.Connectivity = true
	cfg.Notifications.Storage = true
	cfg.Notifications.DedupWindowSeconds = 0
	return cfg
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "upload succeeded",
			event: notifications.EventUploadSucceeded,
			payload: notifications.Payload{
				"fileName": "sunset.jpg",
				"assetId":  "a-42",
			},
			expectTitle:   "Courier - Uploaded",
			expectMessage: "📤 Uploaded: sunset.jpg\nAsset: a-42",
			expectTags:    "courier,upload,completed",
		},
		{
			name:  "upload failed",
			event: notifications.EventUploadFailed,
			payload: notifications.Payload{
				"fileName": "sunset.jpg",
				"attempts": 3,
				"error":    "library transfer returned 503",
			},
			expectTitle:    "Courier - Upload Failed",
			expectMessage:  "❌ Upload failed after 3 attempts: sunset.jpg\nlibrary transfer returned 503",
			expectTags:     "courier,upload,failed",
			expectPriority: "high",
		},
		{
			name:  "queue drained clean",
			event: notifications.EventQueueDrained,
			payload: notifications.Payload{
				"succeeded": 4,
				"failed":    0,
				"duration":  90 * time.Second,
			},
			expectTitle:   "Courier - Queue Drained",
			expectMessage: "Uploaded 4 files in 1m30s",
			expectTags:    "courier,queue,drained",
		},
		{
			name:  "queue drained with errors",
			event: notifications.EventQueueDrained,
			payload: notifications.Payload{
				"succeeded": 2,
				"failed":    1,
				"duration":  5 * time.Second,
			},
			expectTitle:   "Courier - Queue Drained (with errors)",
			expectMessage: "2 uploaded, 1 failed in 5s",
			expectTags:    "courier,queue,drained",
		},
		{
			name:          "went offline",
			event:         notifications.EventConnectivityChange,
			payload:       notifications.Payload{"online": false},
			expectTitle:   "Courier - Offline",
			expectMessage: "⚠️ Library unreachable, uploads will wait",
			expectTags:    "courier,connectivity,offline",
		},
		{
			name:           "storage degraded",
			event:          notifications.EventStorageDegraded,
			payload:        notifications.Payload{"error": "disk full"},
			expectTitle:    "Courier - Storage Degraded",
			expectMessage:  "⚠️ Queue database unavailable: disk full\nQueued uploads will not survive a restart",
			expectTags:     "courier,storage,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := allEventsConfig(server.URL)
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestPublishSkipsDisabledEvents(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := allEventsConfig(server.URL)
	cfg.Notifications.UploadSuccess = false

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventUploadSucceeded, notifications.Payload{
		"fileName": "sunset.jpg",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if hits != 0 {
		t.Fatalf("expected no requests for disabled event, got %d", hits)
	}
}

func TestPublishDedupsRepeatedEvents(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := allEventsConfig(server.URL)
	cfg.Notifications.DedupWindowSeconds = 600

	svc := notifications.NewService(&cfg)
	payload := notifications.Payload{"online": false}

	for i := 0; i < 3; i++ {
		if err := svc.Publish(context.Background(), notifications.EventConnectivityChange, payload); err != nil {
			t.Fatalf("Publish returned error: %v", err)
		}
	}

	if hits != 1 {
		t.Fatalf("expected 1 request after dedup, got %d", hits)
	}
}

func TestPublishReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := allEventsConfig(server.URL)
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}
