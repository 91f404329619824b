package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-laundry/internal/health"
	"github.com/noah-isme/backend-laundry/internal/resilience"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func ready(t *testing.T, h health.Handler) (int, readiness) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readiness
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyAllProbesPass(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, body := ready(t, health.Handler{Probes: []health.Probe{
		health.Postgres(stubPinger{}),
		health.Redis(client),
		health.Breaker("catalog", resilience.NewBreaker(5, 0.5, time.Second)),
	}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok", "catalog": "ok"}, body.Checks)
}

func TestReadyReportsFailingProbe(t *testing.T) {
	code, body := ready(t, health.Handler{
		Timeout: 10 * time.Millisecond,
		Probes:  []health.Probe{health.Postgres(stubPinger{err: errors.New("db down")})},
	})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "db down", body.Checks["db"])
}

func TestReadyReportsOpenCircuit(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, time.Minute)
	ctx := context.Background()
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	code, body := ready(t, health.Handler{Probes: []health.Probe{health.Breaker("catalog", b)}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "circuit open", body.Checks["catalog"])
}

func TestReadinessAfterShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(false)
	code, body := ready(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "shutting_down", body.Status)

	health.SetReady(true)
	code, _ = ready(t, health.Handler{})
	require.Equal(t, http.StatusOK, code)
}
