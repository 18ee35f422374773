package notifications

import (
	"fmt"
	"strings"
	"time"
)

// formatEvent turns an event and its payload into a ready-to-send message.
func formatEvent(event Event, payload Payload) (message, bool) {
	switch event {
	case EventUploadSucceeded:
		name := payloadString(payload, "fileName")
		body := fmt.Sprintf("📤 Uploaded: %s", name)
		if assetID := payloadString(payload, "assetId"); assetID != "" {
			body = fmt.Sprintf("%s\nAsset: %s", body, assetID)
		}
		return message{
			title: "Courier - Uploaded",
			body:  body,
			tags:  []string{"courier", "upload", "completed"},
		}, true

	case EventUploadFailed:
		name := payloadString(payload, "fileName")
		attempts := payloadInt(payload, "attempts")
		reason := payloadString(payload, "error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Courier - Upload Failed",
			body:     fmt.Sprintf("❌ Upload failed after %d attempts: %s\n%s", attempts, name, reason),
			tags:     []string{"courier", "upload", "failed"},
			priority: "high",
		}, true

	case EventQueueDrained:
		succeeded := payloadInt(payload, "succeeded")
		failed := payloadInt(payload, "failed")
		elapsed := payloadDuration(payload, "duration").Round(time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		elapsedText := elapsed.String()
		if elapsed == 0 {
			elapsedText = "0s"
		}

		if failed == 0 {
			return message{
				title: "Courier - Queue Drained",
				body:  fmt.Sprintf("Uploaded %d files in %s", succeeded, elapsedText),
				tags:  []string{"courier", "queue", "drained"},
			}, true
		}
		return message{
			title: "Courier - Queue Drained (with errors)",
			body:  fmt.Sprintf("%d uploaded, %d failed in %s", succeeded, failed, elapsedText),
			tags:  []string{"courier", "queue", "drained"},
		}, true

	case EventConnectivityChange:
		if payloadBool(payload, "online") {
			return message{
				title: "Courier - Online",
				body:  "✅ Library reachable again, uploads resuming",
				tags:  []string{"courier", "connectivity", "online"},
			}, true
		}
		return message{
			title: "Courier - Offline",
			body:  "⚠️ Library unreachable, uploads will wait",
			tags:  []string{"courier", "connectivity", "offline"},
		}, true

	case EventStorageDegraded:
		reason := payloadString(payload, "error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Courier - Storage Degraded",
			body:     fmt.Sprintf("⚠️ Queue database unavailable: %s\nQueued uploads will not survive a restart", reason),
			tags:     []string{"courier", "storage", "alert"},
			priority: "high",
		}, true

	case EventDaemonStarted:
		body := "Watching for uploads"
		if pending := payloadInt(payload, "pending"); pending > 0 {
			body = fmt.Sprintf("Watching for uploads (%d pending)", pending)
		}
		return message{
			title:    "Courier - Started",
			body:     body,
			tags:     []string{"courier", "daemon"},
			priority: "low",
		}, true

	case EventDaemonStopped:
		return message{
			title:    "Courier - Stopped",
			body:     "Daemon shut down",
			tags:     []string{"courier", "daemon"},
			priority: "low",
		}, true

	case EventTest:
		return message{
			title:    "Courier - Test",
			body:     "🧪 Notification delivery test",
			tags:     []string{"courier", "test"},
			priority: "low",
		}, true
	}

	return message{}, false
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	}
	return 0
}

func payloadBool(payload Payload, key string) bool {
	if payload == nil {
		return false
	}
	value, _ := payload[key].(bool)
	return value
}

func payloadDuration(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	value, _ := payload[key].(time.Duration)
	return value
}
