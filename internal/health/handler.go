// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

const probeTimeout = 5 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Dependency is a named readiness probe. Optional dependencies are
// reported but never fail readiness; the broker is optional because
// events fall back to in-process delivery.
type Dependency struct {
	Name     string
	Checker  Checker
	Optional bool
}

type Handler struct {
	deps     []Dependency
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(deps ...Dependency) *Handler {
	h := &Handler{deps: deps}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	h.writeStatus(w, http.StatusOK, StatusResponse{
		Status: "ok",
	})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "shutting_down",
		})
		return
	}

	if !h.ready.Load() {
		h.writeStatus(w, http.StatusServiceUnavailable, StatusResponse{
			Status: "not_ready",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks := h.runHealthChecks(ctx)

	status := "ok"
	statusCode := http.StatusOK
	for i, check := range checks {
		if check.Healthy {
			continue
		}
		if h.deps[i].Optional {
			if status == "ok" {
				status = "degraded"
			}
			continue
		}
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	h.writeStatus(w, statusCode, ReadinessResponse{
		Status: status,
		Checks: checks,
	})
}

// runHealthChecks probes every dependency at once. A failed probe is a
// result, not an error, so one slow store never cancels the others.
func (h *Handler) runHealthChecks(ctx context.Context) []HealthCheck {
	checks := make([]HealthCheck, len(h.deps))

	var g errgroup.Group
	for i, dep := range h.deps {
		g.Go(func() error {
			checks[i] = check(ctx, dep)
			return nil
		})
	}
	_ = g.Wait()

	return checks
}

func check(ctx context.Context, dep Dependency) HealthCheck {
	result := HealthCheck{
		Name:     dep.Name,
		Healthy:  true,
		Optional: dep.Optional,
	}

	if dep.Checker == nil {
		result.Healthy = false
		result.Message = "checker not configured"
		return result
	}

	start := time.Now()
	err := dep.Checker.Ping(ctx)
	result.Latency = time.Since(start).String()

	if err != nil {
		result.Healthy = false
		result.Message = "ping failed"
	}

	return result
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func (h *Handler) writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Cache-Control", "no-store")
	core.JSON(w, status, data)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
