// Package alert delivers notifications about sources that have been
// unhealthy for several consecutive refresh cycles.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/listing"
)

const webhookTimeout = 10 * time.Second

// LogAlerter writes alerts to the structured log. It is the fallback
// when no webhook is configured.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter builds a LogAlerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger}
}

// Notify logs one warning per unhealthy source.
func (a *LogAlerter) Notify(_ context.Context, unhealthy []listing.SourceHealth, stats listing.ScrapeStats) error {
	for _, rec := range unhealthy {
		a.logger.Warn("source unhealthy",
			zap.String("source", rec.Label),
			zap.String("last_outcome", string(rec.LastOutcome)),
			zap.String("last_error", rec.LastError),
			zap.Int("consecutive_zeros", rec.ConsecutiveZeros),
			zap.Int("sources_failed", stats.SourcesFailed),
		)
	}
	return nil
}

// WebhookAlerter POSTs a JSON payload with the unhealthy sources and
// the latest cycle stats to a configured URL.
type WebhookAlerter struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookAlerter builds a WebhookAlerter.
func NewWebhookAlerter(url string, logger *zap.Logger) *WebhookAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Unhealthy []listing.SourceHealth `json:"unhealthy"`
	Stats     listing.ScrapeStats    `json:"stats"`
}

// Notify delivers the alert. A non-2xx response is an error; the
// caller logs and moves on.
func (a *WebhookAlerter) Notify(ctx context.Context, unhealthy []listing.SourceHealth, stats listing.ScrapeStats) error {
	body, err := json.Marshal(webhookPayload{Unhealthy: unhealthy, Stats: stats})
	if err != nil {
		return fmt.Errorf("encode alert payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}
	a.logger.Info("alert delivered", zap.Int("unhealthy", len(unhealthy)))
	return nil
}
