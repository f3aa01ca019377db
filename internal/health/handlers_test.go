package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/health"
)

func ok(context.Context) error { return nil }

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	h := health.Handler{Probes: map[string]health.Probe{"db": ok, "redis": ok}, Timeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, status)
}

func TestReadyFailure(t *testing.T) {
	h := health.Handler{Probes: map[string]health.Probe{
		"db":    func(context.Context) error { return errors.New("db down") },
		"redis": ok,
	}}
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, "db down", status["db"])
	require.Equal(t, "ok", status["redis"])
}

func TestReadyProbeTimeout(t *testing.T) {
	h := health.Handler{Timeout: 10 * time.Millisecond, Probes: map[string]health.Probe{
		"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReadyWithoutProbes(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRedisProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, health.Redis(client)(context.Background()))
	require.Error(t, health.Redis(nil)(context.Background()))
	require.Error(t, health.Postgres(nil)(context.Background()))
}
