package pagecraft

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsEnabled = true
	app, _ := newTestAppWithConfig(t, cfg)
	c := newClient(t, app)

	if rec := c.do(http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET /: expected 200, got %d", rec.Code)
	}
	c.login()
	if rec := c.do(http.MethodPost, "/admin/documents/", url.Values{"type": {"post"}, "title": {"Counted"}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("create: expected 303, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(app.metrics.saved.WithLabelValues("post")); got != 1 {
		t.Errorf("saved posts = %v, want 1", got)
	}

	rec := c.do(http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`pagecraft_http_requests_total{code="200",method="GET",route="/"} 1`,
		`pagecraft_documents_saved_total{type="post"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics miss %q", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	app, _ := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/metrics", nil)
	if rec.Code == http.StatusOK {
		t.Fatal("expected /metrics to be absent when metrics are disabled")
	}
}
