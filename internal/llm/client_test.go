package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

func completionBody(content string) string {
	return fmt.Sprintf(`{
		"model": "o3",
		"choices": [{"message": {"content": %q}, "finish_reason": "stop"}],
		"usage": {
			"prompt_tokens": 120,
			"completion_tokens": 80,
			"completion_tokens_details": {"reasoning_tokens": 32}
		}
	}`, content)
}

func newTestClient(serverURL string, opts ...Option) *Client {
	opts = append([]Option{
		WithSleeper(func(time.Duration) {}),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	}, opts...)
	return NewClient(Config{APIKey: "test-key", BaseURL: serverURL, MaxRetries: 3}, opts...)
}

func TestCompleteReturnsContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		fmt.Fprint(w, completionBody("hello world"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	completion, err := client.Complete(context.Background(), Request{Model: "o3", User: "say hello"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Content != "hello world" {
		t.Fatalf("content = %q", completion.Content)
	}
	if completion.Usage.InputTokens != 120 || completion.Usage.OutputTokens != 80 {
		t.Fatalf("usage = %+v", completion.Usage)
	}
	if completion.Usage.ReasoningTokens != 32 {
		t.Fatalf("reasoning tokens = %d", completion.Usage.ReasoningTokens)
	}
}

func TestCompleteRequiresModelAndKey(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, err := client.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing model error = %v", err)
	}

	client = NewClient(Config{})
	if _, err := client.Complete(context.Background(), Request{Model: "o3", User: "x"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing key error = %v", err)
	}
}

func TestCompleteRetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionBody("recovered"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	completion, err := client.Complete(context.Background(), Request{Model: "o3", User: "retry"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Content != "recovered" {
		t.Fatalf("content = %q", completion.Content)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestCompleteDoesNotRetryOn400(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": {"message": "bad request"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{Model: "o3", User: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("error = %v, want ErrExternal", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), Request{Model: "o3", User: "x"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("error = %v, want ErrTransient", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteJSONSanitizesFencedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("```json\n{\"shots\": 45}\n```"))
	}))
	defer server.Close()

	var parsed struct {
		Shots int `json:"shots"`
	}
	client := newTestClient(server.URL)
	if _, err := client.CompleteJSON(context.Background(), Request{Model: "o3", User: "x"}, &parsed); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if parsed.Shots != 45 {
		t.Fatalf("shots = %d", parsed.Shots)
	}
}

func TestDecodeJSON(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"name": "x"}`, "x", false},
		{"fenced", "```json\n{\"name\": \"y\"}\n```", "y", false},
		{"prose wrapped", `Here you go: {"name": "z"} hope it helps`, "z", false},
		{"empty", "", "", true},
		{"not json", "no structure here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got target
			err := DecodeJSON(tt.content, &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if got.Name != tt.want {
				t.Fatalf("name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		model string
		usage Usage
		want  float64
	}{
		{"o3", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 10.0},
		{"o3-mini", Usage{InputTokens: 2_000_000, OutputTokens: 500_000}, 4.0},
		{"made-up-model", Usage{InputTokens: 1_000_000}, 0},
	}
	for _, tt := range tests {
		if got := EstimateCost(tt.model, tt.usage); got != tt.want {
			t.Errorf("EstimateCost(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
	if KnownModel("made-up-model") {
		t.Error("KnownModel should be false for unknown models")
	}
	if !KnownModel("o3") {
		t.Error("KnownModel(o3) should be true")
	}
}
