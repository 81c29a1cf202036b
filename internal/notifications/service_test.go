package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"binder/internal/config"
	"binder/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventScanPublished, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
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
			name:  "scan detected",
			event: notifications.EventScanDetected,
			payload: notifications.Payload{
				"title": "skwovet-092",
			},
			expectTitle:   "Binder - Scan Detected",
			expectMessage: "\U0001F4C7 Scan detected: skwovet-092",
			expectTags:    "binder,scan,detected",
		},
		{
			name:  "review ready",
			event: notifications.EventReviewReady,
			payload: notifications.Payload{
				"title":      "Skwovet 092",
				"candidates": 3,
			},
			expectTitle:   "Binder - Ready for Review",
			expectMessage: "\U0001F0CF Ready for review: Skwovet 092 (3 candidates)",
			expectTags:    "binder,review,ready",
		},
		{
			name:  "review needs attention",
			event: notifications.EventReviewReady,
			payload: notifications.Payload{
				"title":  "blurry-scan",
				"reason": "No card fields detected",
			},
			expectTitle:    "Binder - Needs Attention",
			expectMessage:  "⚠️ Needs attention: blurry-scan\nNo card fields detected",
			expectTags:     "binder,review,attention",
			expectPriority: "high",
		},
		{
			name:  "scan published",
			event: notifications.EventScanPublished,
			payload: notifications.Payload{
				"title": "Mew ex 151/165",
				"url":   "https://shop.example.com/listings/lst_90201",
			},
			expectTitle:    "Binder - Listed",
			expectMessage:  "✅ Listed: Mew ex 151/165\nhttps://shop.example.com/listings/lst_90201",
			expectTags:     "binder,listing,published",
			expectPriority: "high",
		},
		{
			name:  "queue completed with failures",
			event: notifications.EventQueueCompleted,
			payload: notifications.Payload{
				"processed": 4,
				"failed":    1,
				"duration":  90 * time.Second,
			},
			expectTitle:   "Binder - Queue Complete (with errors)",
			expectMessage: "Queue processing complete: 4 succeeded, 1 failed in 1m30s",
			expectTags:    "binder,queue,completed",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "identification",
				"error":   "catalog search failed",
			},
			expectTitle:    "Binder - Error",
			expectMessage:  "❌ Error with identification: catalog search failed",
			expectTags:     "binder,error,alert",
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

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

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

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Review = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	disabled := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventReviewReady, notifications.Payload{"title": "Skwovet 092"}},
		{notifications.EventError, notifications.Payload{"context": "intake", "error": "boom"}},
	}

	for _, tc := range disabled {
		if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", tc.event, err)
		}
	}
}

func TestNtfyServiceSuppressesSmallQueueStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for small batch: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueMinItems = 3

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventQueueStarted, notifications.Payload{"count": 2}); err != nil {
		t.Fatalf("expected suppressed publish to return nil, got %v", err)
	}
}

func TestNtfyServiceDedupesRepeatedEvents(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.DedupWindowSeconds = 600

	svc := notifications.NewService(&cfg)
	payload := notifications.Payload{"title": "Skwovet 092", "candidates": 3}
	for attempt := 0; attempt < 3; attempt++ {
		if err := svc.Publish(context.Background(), notifications.EventReviewReady, payload); err != nil {
			t.Fatalf("publish returned error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one delivery inside the dedup window, got %d", calls)
	}

	if err := svc.Publish(context.Background(), notifications.EventReviewReady, notifications.Payload{"title": "Mew ex 151/165", "candidates": 1}); err != nil {
		t.Fatalf("publish returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected distinct payload to deliver, got %d calls", calls)
	}
}
