package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves the liveness and readiness probes of the HTTP
// transports. Readiness is flipped by the serve command around startup and
// shutdown.
type HealthChecker struct {
	ready     atomic.Bool
	sc        *ServerContext // nil in tests
	startTime time.Time
}

// NewHealthChecker returns a checker that starts out ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and the state of the stores.
type DetailedHealthResponse struct {
	HealthResponse
	Uptime        string `json:"uptime"`
	Session       string `json:"session,omitempty"`
	HasCredential bool   `json:"has_credential"`
	Messages      int    `json:"messages"`
	ExchangeBusy  bool   `json:"exchange_busy"`
}

// readiness evaluates every readiness check. The overall status is the first
// failing check's status, or ok.
func (h *HealthChecker) readiness() HealthResponse {
	resp := HealthResponse{Status: healthStatusOK, Checks: map[string]string{}}

	record := func(name string, ok bool, failed string) {
		if ok {
			resp.Checks[name] = healthStatusOK
			return
		}
		resp.Checks[name] = failed
		if resp.Status == healthStatusOK {
			resp.Status = failed
		}
	}

	record("ready", h.ready.Load(), healthStatusNotReady)
	record("shutdown", h.sc == nil || !h.sc.IsShutdown(), healthStatusShuttingDown)
	return resp
}

func statusCode(resp HealthResponse) int {
	if resp.Status != healthStatusOK {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := h.readiness()
		writeHealth(w, statusCode(resp), resp)
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			HealthResponse: h.readiness(),
			Uptime:         time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.sc != nil {
			resp.Session = string(h.sc.Session().State().Status)
			resp.HasCredential = h.sc.Gateway().HasCredential()
			snap := h.sc.Conversation().Snapshot()
			resp.Messages = len(snap.Messages)
			resp.ExchangeBusy = snap.Busy
		}
		writeHealth(w, statusCode(resp.HealthResponse), resp)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
