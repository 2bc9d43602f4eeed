package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackBurstThreshold: 10})

	alerts := a.Evaluate(&MetricsSnapshot{
		Status:        router.StatusHealthy,
		ActiveVersion: "v3-llm",
		Fallbacks:     3,
		LookbackMins:  15,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_Critical(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(&MetricsSnapshot{Status: router.StatusCritical, ActiveVersion: "v1-rules"})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertAnalysisCritical, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "v1-rules")
}

func TestAlerter_Evaluate_BreakerOpen(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(&MetricsSnapshot{
		Status:       router.StatusDegraded,
		OpenBreakers: []string{"anthropic"},
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertBreakerOpen, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "anthropic")
}

func TestAlerter_Evaluate_FallbackBurst(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackBurstThreshold: 5})

	alerts := a.Evaluate(&MetricsSnapshot{
		Status:       router.StatusDegraded,
		Fallbacks:    5,
		Degraded:     2,
		LookbackMins: 15,
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFallbackBurst, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "5 analyzer fallbacks in last 15m")
}

func TestAlerter_Evaluate_ZeroBurstThreshold(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackBurstThreshold: 0}) // disabled

	alerts := a.Evaluate(&MetricsSnapshot{Status: router.StatusHealthy, Fallbacks: 999})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FallbackBurstThreshold: 1})

	alerts := a.Evaluate(&MetricsSnapshot{
		Status:       router.StatusCritical,
		OpenBreakers: []string{"anthropic", "selfhosted"},
		Fallbacks:    4,
	})
	require.Len(t, alerts, 3)
	types := []AlertType{alerts[0].Type, alerts[1].Type, alerts[2].Type}
	assert.Equal(t, []AlertType{AlertAnalysisCritical, AlertBreakerOpen, AlertFallbackBurst}, types)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertAnalysisCritical, Severity: "high", Message: "test alert 1"},
		{Type: AlertBreakerOpen, Severity: "medium", Message: "test alert 2"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertBreakerOpen, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertBreakerOpen, Message: "test"}})
	assert.Equal(t, 0, sent)
}
