package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternal, "script", "generate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"script", "generate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "assets", "download", "timed out", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestCategory(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect string
	}{
		{"validation", services.Wrap(services.ErrValidation, "script", "validate", "missing HOOK", nil), "validation"},
		{"quota", services.Wrap(services.ErrQuotaExceeded, "assets", "search", "daily limit", nil), "quota"},
		{"storage", services.Wrap(services.ErrStorage, "workspace", "write", "rename failed", errors.New("io")), "storage"},
		{"staleness", services.Wrap(services.ErrStale, "pipeline", "evaluate", "storyboard stale", nil), "staleness"},
		{"transient", services.Wrap(services.ErrTransient, "assets", "download", "503", nil), "transient"},
		{"unknown", errors.New("plain"), "unknown"},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Category(tc.err); got != tc.expect {
				t.Fatalf("Category(%v) = %q, want %q", tc.err, got, tc.expect)
			}
		})
	}
}

func TestIsDecision(t *testing.T) {
	stale := services.Wrap(services.ErrStale, "pipeline", "evaluate", "phonetic stale", nil)
	if !services.IsDecision(stale) {
		t.Fatalf("expected staleness to be a decision point")
	}
	if services.IsDecision(services.Wrap(services.ErrValidation, "script", "validate", "bad", nil)) {
		t.Fatal("validation errors are not decision points")
	}
}
