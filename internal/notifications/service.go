package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vjcap/internal/config"
)

const userAgent = "vjcap/0.1.0"

// Service is the notification surface exposed to the enrichment pipeline.
// Failures are returned, never retried here.
type Service interface {
	NotifyStarted(ctx context.Context) error
	NotifyStopped(ctx context.Context, passes int, uptime time.Duration) error
	NotifyBudgetExhausted(ctx context.Context, cap int, resetAt time.Time) error
	NotifyProviderDown(ctx context.Context, source string, err error) error
	NotifyPrefetchFailed(ctx context.Context, artist, title string, err error) error
	NotifyError(ctx context.Context, err error, context string) error
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
		budget:   cfg.Notifications.Budget,
		provider: cfg.Notifications.Providers,
		prefetch: cfg.Notifications.Prefetch,
		errors:   cfg.Notifications.Errors,
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

	budget   bool
	provider bool
	prefetch bool
	errors   bool
}

func (n *ntfyService) NotifyStarted(ctx context.Context) error {
	data := payload{
		title:   "vjcap - Started",
		message: "Enrichment daemon is running",
		tags:    []string{"vjcap", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStopped(ctx context.Context, passes int, uptime time.Duration) error {
	uptime = uptime.Round(time.Second)
	if uptime < 0 {
		uptime = 0
	}
	data := payload{
		title:   "vjcap - Stopped",
		message: fmt.Sprintf("Enrichment daemon stopped after %d passes, up %s", passes, uptime),
		tags:    []string{"vjcap", "daemon", "stopped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBudgetExhausted(ctx context.Context, cap int, resetAt time.Time) error {
	if !n.budget {
		return nil
	}
	data := payload{
		title: "vjcap - Budget Exhausted",
		message: fmt.Sprintf("GIF provider budget (%d/window) spent; serving video until %s",
			cap, resetAt.Local().Format("15:04")),
		tags: []string{"vjcap", "budget", "exhausted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProviderDown(ctx context.Context, source string, err error) error {
	if !n.provider {
		return nil
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "unknown"
	}
	data := payload{
		title:   "vjcap - Provider Down",
		message: fmt.Sprintf("Provider %s unavailable: %s", source, errText(err)),
		tags:    []string{"vjcap", "provider", source},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPrefetchFailed(ctx context.Context, artist, title string, err error) error {
	if !n.prefetch {
		return nil
	}
	data := payload{
		title:   "vjcap - Prefetch Failed",
		message: fmt.Sprintf("Could not warm clips for %s - %s: %s", artist, title, errText(err)),
		tags:    []string{"vjcap", "prefetch", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	builder.WriteString(errText(err))

	data := payload{
		title:    "vjcap - Error",
		message:  builder.String(),
		tags:     []string{"vjcap", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "vjcap - Test",
		message:  "Notification system test",
		tags:     []string{"vjcap", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.TrimSpace(err.Error())
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

func (noopService) NotifyStarted(context.Context) error                               { return nil }
func (noopService) NotifyStopped(context.Context, int, time.Duration) error           { return nil }
func (noopService) NotifyBudgetExhausted(context.Context, int, time.Time) error       { return nil }
func (noopService) NotifyProviderDown(context.Context, string, error) error           { return nil }
func (noopService) NotifyPrefetchFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
