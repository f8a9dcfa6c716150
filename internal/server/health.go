package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK         = "ok"
	healthStatusNotReady   = "not ready"
	healthStatusPassFailed = "last pass failed"
)

// HealthChecker tracks read passes and serves them as health endpoints.
// It satisfies the manager's pass observer interface.
type HealthChecker struct {
	startTime time.Time

	mu        sync.RWMutex
	ready     bool
	passes    int
	failures  int
	processed int
	lastPass  time.Time
	lastErr   error
}

// NewHealthChecker creates a HealthChecker that reports ready until a pass
// fails.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now(), ready: true}
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady reports whether the process is ready and the last pass succeeded.
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready && h.lastErr == nil
}

// PassCompleted records the outcome of a read pass.
func (h *HealthChecker) PassCompleted(started time.Time, processed int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.passes++
	h.processed += processed
	h.lastPass = started
	h.lastErr = err
	if err != nil {
		h.failures++
	}
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides pass statistics.
type DetailedHealthResponse struct {
	Status    string     `json:"status"`
	Uptime    string     `json:"uptime"`
	Passes    int        `json:"passes"`
	Failures  int        `json:"failures"`
	Processed int        `json:"processed"`
	LastPass  *time.Time `json:"last_pass,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// LivenessHandler returns the handler for /healthz.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns the handler for /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.mu.RLock()
		ready, lastErr := h.ready, h.lastErr
		h.mu.RUnlock()

		checks := map[string]string{"ready": healthStatusOK, "last_pass": healthStatusOK}
		if !ready {
			checks["ready"] = healthStatusNotReady
		}
		if lastErr != nil {
			checks["last_pass"] = healthStatusPassFailed
		}

		if !ready || lastErr != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
	})
}

// DetailedHealthHandler returns the handler for /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.mu.RLock()
		response := DetailedHealthResponse{
			Status:    healthStatusOK,
			Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
			Passes:    h.passes,
			Failures:  h.failures,
			Processed: h.processed,
		}
		if !h.lastPass.IsZero() {
			last := h.lastPass
			response.LastPass = &last
		}
		code := http.StatusOK
		switch {
		case !h.ready:
			response.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		case h.lastErr != nil:
			response.Status = healthStatusPassFailed
			response.LastError = h.lastErr.Error()
			code = http.StatusServiceUnavailable
		}
		h.mu.RUnlock()

		writeJSON(w, code, response)
	})
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
