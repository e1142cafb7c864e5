package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aria/internal/config"
)

const userAgent = "aria/1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, sessionID string) error
	NotifyDaemonStopped(ctx context.Context, sessionID string) error
	NotifyProviderExhausted(ctx context.Context, key, kind string) error
	NotifyCacheCleared(ctx context.Context, entries int64) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
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

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, sessionID string) error {
	return n.send(ctx, payload{
		title:   "Aria - Started",
		message: fmt.Sprintf("Cache daemon started (session %s)", strings.TrimSpace(sessionID)),
		tags:    []string{"aria", "daemon"},
	})
}

func (n *ntfyService) NotifyDaemonStopped(ctx context.Context, sessionID string) error {
	return n.send(ctx, payload{
		title:   "Aria - Stopped",
		message: fmt.Sprintf("Cache daemon stopped (session %s)", strings.TrimSpace(sessionID)),
		tags:    []string{"aria", "daemon"},
	})
}

func (n *ntfyService) NotifyProviderExhausted(ctx context.Context, key, kind string) error {
	return n.send(ctx, payload{
		title:   "Aria - Fetch Failed",
		message: fmt.Sprintf("Every provider failed for %s (%s); retry suppressed for the cooldown window", key, kind),
		tags:    []string{"aria", "provider", "failure"},
	})
}

func (n *ntfyService) NotifyCacheCleared(ctx context.Context, entries int64) error {
	return n.send(ctx, payload{
		title:   "Aria - Cache Cleared",
		message: fmt.Sprintf("Removed %d cached entries", entries),
		tags:    []string{"aria", "cache"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "Aria - Error",
		message:  builder.String(),
		tags:     []string{"aria", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Aria - Test",
		message:  "Notification system test",
		tags:     []string{"aria", "test"},
		priority: "low",
	})
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

func (noopService) NotifyDaemonStarted(context.Context, string) error           { return nil }
func (noopService) NotifyDaemonStopped(context.Context, string) error           { return nil }
func (noopService) NotifyProviderExhausted(context.Context, string, string) error { return nil }
func (noopService) NotifyCacheCleared(context.Context, int64) error             { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
