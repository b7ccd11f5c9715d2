package probe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthzHandler(Static(true, "")).ServeHTTP(rec, httptest.NewRequest("GET", "/-/healthy", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("healthy: status = %d body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HealthzHandler(Static(false, "disk full")).ServeHTTP(rec, httptest.NewRequest("GET", "/-/healthy", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "disk full") {
		t.Fatalf("unhealthy: status = %d body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HealthzHandler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/-/healthy", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil probe: status = %d, want 200", rec.Code)
	}
}

func TestReadyzHandler_GateDrains(t *testing.T) {
	var gate ShutdownGate
	h := ReadyzHandler(gate.Probe())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/-/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("before drain: status = %d", rec.Code)
	}

	gate.Set("shutting down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/-/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "shutting down") {
		t.Fatalf("draining: status = %d body = %q", rec.Code, rec.Body.String())
	}
}
