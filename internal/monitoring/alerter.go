package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertAnalysisCritical AlertType = "analysis_critical"
	AlertBreakerOpen      AlertType = "breaker_open"
	AlertFallbackBurst    AlertType = "fallback_burst"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Status == router.StatusCritical {
		alerts = append(alerts, Alert{
			Type:     AlertAnalysisCritical,
			Severity: "high",
			Message:  fmt.Sprintf("Claim analysis is running on %s only", snap.ActiveVersion),
			Details: map[string]any{
				"status":         snap.Status,
				"active_version": snap.ActiveVersion,
			},
			Timestamp: now,
		})
	}

	if len(snap.OpenBreakers) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertBreakerOpen,
			Severity: "medium",
			Message:  fmt.Sprintf("Provider circuit open: %s", strings.Join(snap.OpenBreakers, ", ")),
			Details: map[string]any{
				"providers": snap.OpenBreakers,
			},
			Timestamp: now,
		})
	}

	if a.cfg.FallbackBurstThreshold > 0 && snap.Fallbacks >= a.cfg.FallbackBurstThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFallbackBurst,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d analyzer fallbacks in last %dm (threshold %d, %d degraded)",
				snap.Fallbacks, snap.LookbackMins, a.cfg.FallbackBurstThreshold, snap.Degraded,
			),
			Details: map[string]any{
				"fallbacks": snap.Fallbacks,
				"by_from":   snap.FallbacksByFrom,
				"degraded":  snap.Degraded,
				"threshold": a.cfg.FallbackBurstThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
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

// sendWebhook posts a single alert to the webhook URL.
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
