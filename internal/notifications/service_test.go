package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func serviceFor(endpoint string) Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = endpoint
	cfg.Notifications.RequestTimeout = 5
	return NewService(&cfg)
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyRunFailed(context.Background(), "Test", errors.New("boom")); err != nil {
		t.Fatalf("noop notify returned error: %v", err)
	}
}

func TestNotifyRunCompleted(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	svc := serviceFor(server.URL)

	if err := svc.NotifyRunCompleted(context.Background(), "Test Subject", "ASSETS_READY", 1.2345); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink) != 1 {
		t.Fatalf("expected 1 request, got %d", len(sink))
	}
	got := sink[0]
	if got.title != "JGL - Run Complete" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if !strings.Contains(got.body, "Test Subject") || !strings.Contains(got.body, "$1.2345") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNotifyRunFailedIsHighPriority(t *testing.T) {
	var sink []captured
	server := newCaptureServer(t, &sink)
	svc := serviceFor(server.URL)

	if err := svc.NotifyRunFailed(context.Background(), "Test Subject", errors.New("stage failed")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	got := sink[0]
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
	if !strings.Contains(got.body, "stage failed") {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestSendSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rejected", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)
	svc := serviceFor(server.URL)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
