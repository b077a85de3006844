// Package notifications sends optional ntfy push notifications for run
// outcomes. When no topic is configured every call is a no-op, so
// callers never need to branch on whether notifications are enabled.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/config"
)

const userAgent = "JGL-Assistant/1.0"

// Service is the notification surface exposed to the pipeline and CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, entityName, state string, totalCost float64) error
	NotifyRunFailed(ctx context.Context, entityName string, err error) error
	NotifyAssetsPartial(ctx context.Context, entityName string, shotsPartial, shotsFailed int) error
	NotifyQuotaExhausted(ctx context.Context, entityName string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when a topic is
// configured, otherwise a noop implementation.
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, entityName, state string, totalCost float64) error {
	entityName = strings.TrimSpace(entityName)
	data := payload{
		title:   "JGL - Run Complete",
		message: fmt.Sprintf("Run complete: %s (%s, $%.4f total)", entityName, state, totalCost),
		tags:    []string{"jgl", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, entityName string, err error) error {
	entityName = strings.TrimSpace(entityName)
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "JGL - Run Failed",
		message:  fmt.Sprintf("Run failed for %s: %s\nEarlier artifacts preserved", entityName, detail),
		tags:     []string{"jgl", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAssetsPartial(ctx context.Context, entityName string, shotsPartial, shotsFailed int) error {
	entityName = strings.TrimSpace(entityName)
	data := payload{
		title: "JGL - Assets Incomplete",
		message: fmt.Sprintf("Image pools incomplete for %s: %d partial, %d failed shots\nRe-run to resume",
			entityName, shotsPartial, shotsFailed),
		tags: []string{"jgl", "assets", "partial"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQuotaExhausted(ctx context.Context, entityName string) error {
	entityName = strings.TrimSpace(entityName)
	data := payload{
		title:    "JGL - Search Quota Exhausted",
		message:  fmt.Sprintf("Daily image search budget exhausted during %s\nRemaining shots resume tomorrow", entityName),
		tags:     []string{"jgl", "quota", "exhausted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "JGL - Test",
		message:  "Notification system test",
		tags:     []string{"jgl", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyRunCompleted(context.Context, string, string, float64) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error              { return nil }
func (noopService) NotifyAssetsPartial(context.Context, string, int, int) error       { return nil }
func (noopService) NotifyQuotaExhausted(context.Context, string) error                { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
