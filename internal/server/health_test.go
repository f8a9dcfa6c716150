package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker()
	h.PassCompleted(time.Now(), 0, errors.New("boom"))

	code, body := serve(t, h.LivenessHandler())
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != healthStatusOK {
		t.Errorf("status field = %v, want %q", body["status"], healthStatusOK)
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		passErr  error
		wantCode int
		wantPass string
	}{
		{name: "ready", ready: true, wantCode: http.StatusOK, wantPass: healthStatusOK},
		{name: "not ready", ready: false, wantCode: http.StatusServiceUnavailable, wantPass: healthStatusOK},
		{name: "last pass failed", ready: true, passErr: errors.New("quota"), wantCode: http.StatusServiceUnavailable, wantPass: healthStatusPassFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker()
			h.SetReady(tt.ready)
			h.PassCompleted(time.Now(), 1, tt.passErr)

			code, body := serve(t, h.ReadinessHandler())
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			checks, _ := body["checks"].(map[string]any)
			if checks["last_pass"] != tt.wantPass {
				t.Errorf("last_pass check = %v, want %q", checks["last_pass"], tt.wantPass)
			}
			if h.IsReady() != (tt.wantCode == http.StatusOK) {
				t.Errorf("IsReady() = %v", h.IsReady())
			}
		})
	}
}

func TestHealthChecker_RecoversAfterSuccessfulPass(t *testing.T) {
	h := NewHealthChecker()
	h.PassCompleted(time.Now(), 0, errors.New("quota"))
	if h.IsReady() {
		t.Fatal("IsReady() = true after a failed pass")
	}
	h.PassCompleted(time.Now(), 2, nil)
	if !h.IsReady() {
		t.Fatal("IsReady() = false after a successful pass")
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	h := NewHealthChecker()

	code, body := serve(t, h.DetailedHealthHandler())
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if _, ok := body["last_pass"]; ok {
		t.Error("last_pass present before any pass")
	}

	h.PassCompleted(time.Now(), 3, nil)
	h.PassCompleted(time.Now(), 1, errors.New("backend error"))

	code, body = serve(t, h.DetailedHealthHandler())
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body["passes"] != float64(2) || body["failures"] != float64(1) || body["processed"] != float64(4) {
		t.Errorf("unexpected statistics: %v", body)
	}
	if body["last_error"] != "backend error" {
		t.Errorf("last_error = %v, want %q", body["last_error"], "backend error")
	}
}
