package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"binder/internal/config"
)

const userAgent = "Binder/0.1.0"

// Event names a scan lifecycle milestone worth pushing to the operator.
type Event string

const (
	EventScanDetected   Event = "scan_detected"
	EventReviewReady    Event = "review_ready"
	EventScanPublished  Event = "scan_published"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries the event-specific values used to format a message.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		settings:      cfg.Notifications,
		dedupWindow:   time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastPublished: make(map[string]time.Time),
		now:           time.Now,
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
	settings    config.Notifications
	dedupWindow time.Duration

	mu            sync.Mutex
	lastPublished map[string]time.Time
	now           func() time.Time
}

// Publish formats and sends the event when its config toggle allows it.
// Suppressed and deduplicated events return nil without touching the wire.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if !n.enabled(event, payload) {
		return nil
	}
	msg, ok := formatMessage(event, payload)
	if !ok {
		return nil
	}
	if event != EventTest && n.recentlyPublished(event, msg.body) {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event, payload Payload) bool {
	switch event {
	case EventScanDetected:
		return n.settings.Identification
	case EventReviewReady:
		return n.settings.Review
	case EventScanPublished:
		return n.settings.Publish
	case EventQueueStarted:
		if !n.settings.Queue {
			return false
		}
		return payloadInt(payload, "count") >= n.settings.QueueMinItems
	case EventQueueCompleted:
		return n.settings.Queue
	case EventError:
		return n.settings.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

// recentlyPublished reports whether the same event body went out inside the
// dedup window, recording this publish either way.
func (n *ntfyService) recentlyPublished(event Event, body string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := string(event) + "\n" + body
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastPublished[key]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	if len(n.lastPublished) > 128 {
		for existing, when := range n.lastPublished {
			if now.Sub(when) >= n.dedupWindow {
				delete(n.lastPublished, existing)
			}
		}
	}
	n.lastPublished[key] = now
	return false
}

func formatMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventScanDetected:
		label := payloadString(payload, "title")
		if label == "" {
			label = "Untitled Scan"
		}
		return message{
			title: "Binder - Scan Detected",
			body:  fmt.Sprintf("\U0001F4C7 Scan detected: %s", label),
			tags:  []string{"binder", "scan", "detected"},
		}, true
	case EventReviewReady:
		label := payloadString(payload, "title")
		if label == "" {
			label = "Untitled Scan"
		}
		if reason := payloadString(payload, "reason"); reason != "" {
			return message{
				title:    "Binder - Needs Attention",
				body:     fmt.Sprintf("⚠️ Needs attention: %s\n%s", label, reason),
				tags:     []string{"binder", "review", "attention"},
				priority: "high",
			}, true
		}
		return message{
			title: "Binder - Ready for Review",
			body:  fmt.Sprintf("\U0001F0CF Ready for review: %s (%d candidates)", label, payloadInt(payload, "candidates")),
			tags:  []string{"binder", "review", "ready"},
		}, true
	case EventScanPublished:
		label := payloadString(payload, "title")
		if label == "" {
			label = "Untitled Scan"
		}
		body := fmt.Sprintf("✅ Listed: %s", label)
		if url := payloadString(payload, "url"); url != "" {
			body = fmt.Sprintf("%s\n%s", body, url)
		}
		return message{
			title:    "Binder - Listed",
			body:     body,
			tags:     []string{"binder", "listing", "published"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Binder - Queue Started",
			body:  fmt.Sprintf("Started processing %d scans", payloadInt(payload, "count")),
			tags:  []string{"binder", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return formatQueueCompleted(payload), true
	case EventError:
		return formatError(payload), true
	case EventTest:
		return message{
			title:    "Binder - Test",
			body:     "\U0001F9EA Notification system test",
			tags:     []string{"binder", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func formatQueueCompleted(payload Payload) message {
	processed := payloadInt(payload, "processed")
	failed := payloadInt(payload, "failed")
	duration := payloadDuration(payload, "duration").Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	if failed == 0 {
		return message{
			title: "Binder - Queue Complete",
			body:  fmt.Sprintf("Queue processing complete: %d scans processed in %s", processed, durationText),
			tags:  []string{"binder", "queue", "completed"},
		}
	}
	return message{
		title: "Binder - Queue Complete (with errors)",
		body:  fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText),
		tags:  []string{"binder", "queue", "completed"},
	}
}

func formatError(payload Payload) message {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel := payloadString(payload, "context"); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if detail := payloadString(payload, "error"); detail != "" {
		builder.WriteString(detail)
	} else {
		builder.WriteString("unknown")
	}
	return message{
		title:    "Binder - Error",
		body:     builder.String(),
		tags:     []string{"binder", "error", "alert"},
		priority: "high",
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch value := payload[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	case error:
		return strings.TrimSpace(value.Error())
	default:
		return ""
	}
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
	case float64:
		return int(value)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case time.Duration:
		return value
	case int64:
		return time.Duration(value)
	case float64:
		return time.Duration(value)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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
