package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON from %s: %v", path, err)
	}
	return w, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)

	w, body := serve(t, h.LivenessHandler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body["status"] != healthStatusOK {
		t.Errorf("status field = %v, want %q", body["status"], healthStatusOK)
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		shutdown   bool
		wantCode   int
		wantStatus string
	}{
		{name: "ready", ready: true, wantCode: http.StatusOK, wantStatus: healthStatusOK},
		{name: "not ready", ready: false, wantCode: http.StatusServiceUnavailable, wantStatus: healthStatusNotReady},
		{name: "shutting down", ready: true, shutdown: true, wantCode: http.StatusServiceUnavailable, wantStatus: healthStatusShuttingDown},
		{name: "not ready wins", ready: false, shutdown: true, wantCode: http.StatusServiceUnavailable, wantStatus: healthStatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newTestServerContext(t, Options{})
			h := NewHealthChecker(sc)
			h.SetReady(tt.ready)
			if tt.shutdown {
				_ = sc.Shutdown()
			}

			w, body := serve(t, h.ReadinessHandler(), "/readyz")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status field = %v, want %q", body["status"], tt.wantStatus)
			}
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	sc := newTestServerContext(t, Options{})
	h := NewHealthChecker(sc)

	w, body := serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body["session"] != "uninitialized" {
		t.Errorf("session = %v, want uninitialized", body["session"])
	}
	if body["has_credential"] != true {
		t.Errorf("has_credential = %v, want true", body["has_credential"])
	}
	if body["messages"] != float64(0) {
		t.Errorf("messages = %v, want 0", body["messages"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Error("uptime missing")
	}
}

func TestHealthChecker_RegisterEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthChecker(nil).RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		w, _ := serve(t, mux, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}
