// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-laundry/internal/common"
	"github.com/noah-isme/backend-laundry/internal/resilience"
)

const defaultTimeout = 500 * time.Millisecond

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process readiness flag. The API clears it on shutdown so
// load balancers drain traffic before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Postgres probes a pool with Ping.
func Postgres(p Pinger) Probe {
	return Probe{Name: "db", Check: p.Ping}
}

// Redis probes a client with PING.
func Redis(c redis.UniversalClient) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return c.Ping(ctx).Err()
	}}
}

// Breaker reports a dependency as unavailable while its circuit is open.
func Breaker(name string, b *resilience.Breaker) Probe {
	return Probe{Name: name, Check: func(context.Context) error {
		if b.State() == resilience.Open {
			return errors.New("circuit open")
		}
		return nil
	}}
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes  []Probe
	Timeout time.Duration
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe with its own timeout and reports 503 when any fails
// or the process is shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, readiness{Status: "shutting_down", Checks: map[string]string{}})
		return
	}
	res := readiness{Status: "ok", Checks: make(map[string]string, len(h.Probes))}
	for _, p := range h.Probes {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := p.Check(ctx)
		cancel()
		if err != nil {
			res.Status = "degraded"
			res.Checks[p.Name] = err.Error()
			continue
		}
		res.Checks[p.Name] = "ok"
	}
	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, res)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return defaultTimeout
	}
	return h.Timeout
}
