package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBreakerOpen(t *testing.T) {
	SetBreakerOpen("test-provider", true)
	assert.InDelta(t, 1, testutil.ToFloat64(BreakerOpen.WithLabelValues("test-provider")), 1e-9)

	SetBreakerOpen("test-provider", false)
	assert.InDelta(t, 0, testutil.ToFloat64(BreakerOpen.WithLabelValues("test-provider")), 1e-9)
}

func TestHandler(t *testing.T) {
	FallbackEvents.WithLabelValues("v3-llm", "v2-db").Inc()
	SkippedAnalyzers.WithLabelValues("v3-llm").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "maxclaim_fallback_events_total")
	assert.Contains(t, rec.Body.String(), `maxclaim_analyzer_skipped_total{version="v3-llm"}`)
}
