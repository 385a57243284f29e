package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveTransfer("success", 120*time.Millisecond)
	m.ObserveTransfer("success", time.Second)
	m.ObserveTransfer("failure", time.Second)
	m.ObserveRedirect()
	m.ObservePin("new")
	m.ObserveNavigation("success")

	assert.InDelta(t, 2, testutil.ToFloat64(m.Transfers.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Redirects), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PinChecks.WithLabelValues("new")), 0)

	done := m.SessionStarted()
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionsActive), 0)
	done()
	assert.InDelta(t, 0, testutil.ToFloat64(m.SessionsActive), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransfer("success", time.Second)
		m.ObserveRedirect()
		m.ObservePin("known")
		m.ObserveNavigation("failure")
		m.SessionStarted()()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveNavigation("input")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gsurf_navigations_total{event="input"} 1`)
}
