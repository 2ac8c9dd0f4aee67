package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

func newTestHandler(t *testing.T) (*echo.Echo, *Handler) {
	t.Helper()
	h := NewHandler(setupTestStore(t), NewHasher("test"), "blog.example.com")
	fixed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	e := echo.New()
	h.RegisterRoutes(e.Group(""), e.Group("/admin"))
	return e, h
}

func collect(e *echo.Echo, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", firefoxUA)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func countRows(t *testing.T, h *Handler, table string) int {
	t.Helper()
	var n int
	if err := h.store.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header map[string]string
		status int
		visits int
		bots   int
	}{
		{"page view", `{"path":"/blog/hello/","referrer":"https://www.google.com/"}`, nil, http.StatusNoContent, 1, 0},
		{"do not track", `{"path":"/"}`, map[string]string{"DNT": "1"}, http.StatusNoContent, 0, 0},
		{"global privacy control", `{"path":"/"}`, map[string]string{"Sec-GPC": "1"}, http.StatusNoContent, 0, 0},
		{"bot", `{"path":"/","user_agent":"Googlebot/2.1"}`, nil, http.StatusNoContent, 0, 1},
		{"relative path", `{"path":"blog"}`, nil, http.StatusBadRequest, 0, 0},
		{"long path", `{"path":"/` + strings.Repeat("a", maxPathLen) + `"}`, nil, http.StatusBadRequest, 0, 0},
		{"negative duration", `{"path":"/","duration_sec":-1}`, nil, http.StatusBadRequest, 0, 0},
		{"malformed", `{"path":`, nil, http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, h := newTestHandler(t)
			rec := collect(e, tt.body, tt.header)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := countRows(t, h, "visits"); got != tt.visits {
				t.Errorf("visits = %d, want %d", got, tt.visits)
			}
			if got := countRows(t, h, "bot_visits"); got != tt.bots {
				t.Errorf("bot visits = %d, want %d", got, tt.bots)
			}
		})
	}
}

func TestCollectDurationBeacon(t *testing.T) {
	e, h := newTestHandler(t)
	if rec := collect(e, `{"path":"/about/"}`, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("view status = %d", rec.Code)
	}
	if rec := collect(e, `{"path":"/about/","duration_sec":42}`, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("beacon status = %d", rec.Code)
	}
	if got := countRows(t, h, "visits"); got != 1 {
		t.Fatalf("beacon should not add a visit, got %d", got)
	}
	var d int
	if err := h.store.db.QueryRow(`SELECT duration_sec FROM visits`).Scan(&d); err != nil {
		t.Fatal(err)
	}
	if d != 42 {
		t.Errorf("duration = %d, want 42", d)
	}
}

func TestCollectRateLimit(t *testing.T) {
	e, _ := newTestHandler(t)
	var last int
	for i := 0; i < 61; i++ {
		last = collect(e, `{"path":"/"}`, nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("61st request status = %d, want 429", last)
	}
	other := collect(e, `{"path":"/"}`, map[string]string{echo.HeaderXForwardedFor: "203.0.113.9"})
	if other.Code != http.StatusNoContent {
		t.Errorf("another IP got %d, want 204", other.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	e, h := newTestHandler(t)
	v := &Visit{VisitorID: "v", SessionID: "s", IPHash: "h", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/", Timestamp: h.now()}
	if err := h.store.SaveVisit(context.Background(), v); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics/api/stats?period=today", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stats.Period != "today" || resp.Stats.TotalViews != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if resp.Realtime != 1 {
		t.Errorf("realtime = %d", resp.Realtime)
	}
	if len(resp.Stats.Views) != 24 {
		t.Errorf("views has %d buckets", len(resp.Stats.Views))
	}
}
