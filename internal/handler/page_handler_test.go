package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageHandler(t *testing.T) {
	t.Parallel()

	pages, err := NewPageHandler()
	require.NoError(t, err)

	t.Run("renders escaped placeholder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		pages.Page("Booking", "Pilih jadwal servis <hari ini>")(rec, httptest.NewRequest(http.MethodGet, "/booking", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `data-page="/booking"`)
		assert.Contains(t, rec.Body.String(), "&lt;hari ini&gt;")
	})

	t.Run("serves embedded static files", func(t *testing.T) {
		rec := httptest.NewRecorder()
		pages.Static(rec, httptest.NewRequest(http.MethodGet, "/static/session.js", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "pointerdown")
	})

	t.Run("keeps a preset content type on pwa assets", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rec.Header().Set("Content-Type", "application/manifest+json")
		pages.Manifest(rec, httptest.NewRequest(http.MethodGet, "/manifest.json", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/manifest+json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `"start_url": "/"`)

		rec = httptest.NewRecorder()
		pages.ServiceWorker(rec, httptest.NewRequest(http.MethodGet, "/sw.js", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "skipWaiting")
	})
}

type stubPinger struct{ err error }

func (s stubPinger) Health(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, string(decodeEnvelope(t, rec).Data))

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{err: errors.New("down")}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
