package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/kestrelworks/inkwell/internal/version"
)

func gatherFamilies(t *testing.T, m *ServerMetrics) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := m.reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func counterValue(f *dto.MetricFamily, labels map[string]string) float64 {
outer:
	for _, m := range f.GetMetric() {
		got := map[string]string{}
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		for k, v := range labels {
			if got[k] != v {
				continue outer
			}
		}
		return m.GetCounter().GetValue()
	}
	return -1
}

func TestNew_RegistryPopulated(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"profiling_active",
		"content_posts_loaded",
		"git_backend_timeouts_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	m := New()

	m.IncRefresh(true)
	m.IncRefresh(true)
	m.IncRefresh(false)
	m.IncGitRequest("git-receive-pack", 200)
	m.IncGitRejected("bad_path")
	m.IncGitTimeout()
	m.IncWebhookDelivery(true)
	m.IncWebhookDelivery(false)

	fams := gatherFamilies(t, m)

	if got := counterValue(fams["content_refresh_total"], map[string]string{"result": "ok"}); got != 2 {
		t.Errorf("refresh ok = %v, want 2", got)
	}
	if got := counterValue(fams["content_refresh_total"], map[string]string{"result": "error"}); got != 1 {
		t.Errorf("refresh error = %v, want 1", got)
	}
	if got := counterValue(fams["git_requests_total"], map[string]string{"op": "git-receive-pack", "status": "200"}); got != 1 {
		t.Errorf("git requests = %v, want 1", got)
	}
	if got := counterValue(fams["git_requests_rejected_total"], map[string]string{"reason": "bad_path"}); got != 1 {
		t.Errorf("git rejected = %v, want 1", got)
	}
	if got := counterValue(fams["webhook_deliveries_total"], map[string]string{"outcome": "ok"}); got != 1 {
		t.Errorf("webhook ok = %v, want 1", got)
	}
	if got := counterValue(fams["webhook_deliveries_total"], map[string]string{"outcome": "error"}); got != 1 {
		t.Errorf("webhook error = %v, want 1", got)
	}
}

func TestSetSnapshotStats(t *testing.T) {
	m := New()

	loadedAt := time.Unix(1700000000, 0)
	m.SetSnapshotStats(12, 3, 1, loadedAt, "deadbeef")
	m.SetSnapshotStats(13, 3, 0, loadedAt, "cafef00d")

	fams := gatherFamilies(t, m)

	fp := fams["content_fingerprint_info"]
	if fp == nil {
		t.Fatal("content_fingerprint_info missing")
	}
	if n := len(fp.GetMetric()); n != 1 {
		t.Fatalf("fingerprint series = %d, want 1 (old labels must be cleared)", n)
	}
	if got := fp.GetMetric()[0].GetLabel()[0].GetValue(); got != "cafef00d" {
		t.Errorf("fingerprint label = %q, want cafef00d", got)
	}

	posts := fams["content_posts_loaded"]
	if got := posts.GetMetric()[0].GetGauge().GetValue(); got != 13 {
		t.Errorf("posts loaded = %v, want 13", got)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	m.SetBuildInfoFromVersion("inkwell", "server", version.Get())

	fams := gatherFamilies(t, m)
	bi := fams["build_info"]
	if bi == nil || len(bi.GetMetric()) != 1 {
		t.Fatal("build_info not populated")
	}
	if got := bi.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("build_info value = %v, want 1", got)
	}
}
