package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertVerifyFailureRate AlertType = "verify_failure_rate"
	AlertPersistFailure    AlertType = "persist_failure"
	AlertSourceUnavailable AlertType = "source_unavailable"
)

// minAttempts is how many verifications must have finished before the
// failure rate is evaluated.
const minAttempts = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// alerts to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	s := snap.Session

	attempts := s.Verified + s.VerifyFailures
	if attempts >= minAttempts && snap.VerifyFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertVerifyFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Verification failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempts)",
				snap.VerifyFailRate*100, a.cfg.FailureRateThreshold*100, s.VerifyFailures, attempts,
			),
			Details: map[string]any{
				"failure_rate": snap.VerifyFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       s.VerifyFailures,
				"attempts":     attempts,
			},
			Timestamp: now,
		})
	}

	if s.PersistFailures > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertPersistFailure,
			Severity: "high",
			Message:  fmt.Sprintf("%d submission(s) failed to persist", s.PersistFailures),
			Details: map[string]any{
				"failed":    s.PersistFailures,
				"submitted": s.Submitted,
			},
			Timestamp: now,
		})
	}

	if s.FetchFailures > 0 && s.Refreshes == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSourceUnavailable,
			Severity: "medium",
			Message:  fmt.Sprintf("feed source failed %d time(s) with no successful refresh", s.FetchFailures),
			Details: map[string]any{
				"fetch_failures": s.FetchFailures,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL. Without a
// webhook, alerts are only logged. Returns the number of alerts delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert",
				zap.String("type", string(alert.Type)),
				zap.String("message", alert.Message),
			)
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
