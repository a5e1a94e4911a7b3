package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	s := New("0", clockwork.NewFakeClock())
	rec := serve(t, s, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bot is running!", rec.Body.String())
}

func TestLiveness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New("0", clock)
	clock.Advance(90 * time.Second)

	rec := serve(t, s, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 90.0, body["uptime"])
}

func TestReadiness(t *testing.T) {
	healthy := Check{Name: "store", Check: func(context.Context) error { return nil }}
	broken := Check{Name: "notifier", Check: func(context.Context) error { return errors.New("breaker open") }}

	rec := serve(t, New("0", clockwork.NewFakeClock(), healthy), "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, New("0", clockwork.NewFakeClock(), healthy, broken), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "notifier", body["failed_check"])
	assert.Equal(t, "breaker open", body["error"])
}

func TestMetrics(t *testing.T) {
	rec := serve(t, New("0", clockwork.NewFakeClock()), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
