package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveAuth("login", OutcomeSuccess)
	m.ObserveAuth("login", OutcomeSuccess)
	m.ObserveAuth("login", OutcomeFailure)
	m.ObserveGuard("admin-protected", "redirect")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("admin-protected", "redirect")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAuth("login", OutcomeSuccess)
		m.ObserveGuard("public", "allow")
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, 0.1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, "/auth/login", http.StatusOK, 0.02)
	m.ObserveAuth("register", OutcomeRejected)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "hp_booking_http_request_duration_seconds")
	assert.Contains(t, body, `hp_booking_auth_attempts_total{operation="register",outcome="rejected"} 1`)
}
