package pagecraft

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

const (
	testPassword = "correct horse battery staple"
	testSecret   = "0123456789abcdef0123456789abcdef"
	testCSRF     = "test-csrf-token"
)

func testConfig() SiteConfig {
	return SiteConfig{
		Name:          "Test Blog",
		URL:           "https://example.com",
		Description:   "A blog for tests",
		Author:        "Tester",
		StoreDriver:   DriverMemory,
		AdminPassword: testPassword,
		SessionSecret: testSecret,
		LogLevel:      "off",
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App, *store.MemoryStore) {
	t.Helper()
	return newTestAppWithConfig(t, testConfig(), opts...)
}

func newTestAppWithConfig(t *testing.T, cfg SiteConfig, opts ...Option) (*App, *store.MemoryStore) {
	t.Helper()
	s, err := store.NewMemoryStore()
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	opts = append([]Option{WithStore(s), WithStaticDir(t.TempDir()), WithViewOptions(quoteTemplates)}, opts...)
	app := New(cfg, opts...)
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app, s
}

// client drives the app through its full middleware stack and keeps cookies
// between requests like a browser would.
type client struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
	htmx    bool
}

func newClient(t *testing.T, app *App) *client {
	return &client{t: t, app: app, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	req.Header.Set("X-CSRF-Token", testCSRF)
	req.AddCookie(&http.Cookie{Name: "_csrf", Value: testCSRF})
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if c.htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	c.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "_csrf" {
			continue
		}
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) login() {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/admin/login/", url.Values{"password": {testPassword}})
	if rec.Code != http.StatusSeeOther {
		c.t.Fatalf("login: expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := c.cookies[sessionName]; !ok {
		c.t.Fatalf("login did not set the %s cookie", sessionName)
	}
}

func saveDoc(t *testing.T, s store.Store, d content.Document) content.Document {
	t.Helper()
	if err := s.SaveDocument(context.Background(), &d); err != nil {
		t.Fatalf("SaveDocument(%s): %v", d.Slug, err)
	}
	return d
}

func addSection(t *testing.T, d *content.Document, kind content.Kind, c content.Content) content.Section {
	t.Helper()
	s, err := d.AddSection(kind, -1)
	if err != nil {
		t.Fatalf("AddSection(%s): %v", kind, err)
	}
	if c != nil {
		if err := d.UpdateSection(s.ID, c); err != nil {
			t.Fatalf("UpdateSection(%s): %v", kind, err)
		}
	}
	return s
}

func getDoc(t *testing.T, s store.Store, id string) content.Document {
	t.Helper()
	d, err := s.GetDocument(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDocument(%s): %v", id, err)
	}
	return d
}

func TestInitRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.AdminPassword = ""
	app := New(cfg)
	if err := app.Init(context.Background()); err == nil {
		t.Fatal("expected Init to fail without ADMIN_PASSWORD")
	}
}

func TestAdminRequiresLogin(t *testing.T) {
	app, s := newTestApp(t)
	doc := saveDoc(t, s, content.NewDocument(content.TypePost, "Secret draft"))
	c := newClient(t, app)

	rec := c.do(http.MethodGet, "/admin/documents/"+doc.ID+"/", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/" {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	c.htmx = true
	rec = c.do(http.MethodPost, "/admin/documents/"+doc.ID+"/sections/", url.Values{"kind": {"hero"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for htmx, got %d", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/admin/" {
		t.Fatalf("expected HX-Redirect /admin/, got %q", got)
	}
	if len(getDoc(t, s, doc.ID).Sections) != 0 {
		t.Fatal("unauthenticated request modified the document")
	}
}

func TestAdminLogin(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)

	rec := c.do(http.MethodGet, "/admin/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="password"`) {
		t.Fatalf("expected login form, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/admin/login/", url.Values{"password": {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong password, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Wrong password") {
		t.Fatal("expected the error message on the login form")
	}

	c.login()
	rec = c.do(http.MethodGet, "/admin/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "New document") {
		t.Fatalf("expected dashboard after login, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, "/admin/logout/", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 on logout, got %d", rec.Code)
	}
	rec = c.do(http.MethodGet, "/admin/media/", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", rec.Code)
	}
}

func TestAdminLoginRateLimited(t *testing.T) {
	app, _ := newTestApp(t)
	c := newClient(t, app)

	for i := 0; i < 5; i++ {
		if rec := c.do(http.MethodPost, "/admin/login/", url.Values{"password": {"nope"}}); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := c.do(http.MethodPost, "/admin/login/", url.Values{"password": {testPassword}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after five failures, got %d", rec.Code)
	}
}

func TestCSRFRequired(t *testing.T) {
	app, _ := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader("password="+url.QueryEscape(testPassword)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden && rec.Code != http.StatusBadRequest {
		t.Fatalf("expected the request to be rejected without a CSRF token, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	app, _ := newTestApp(t)
	rec := newClient(t, app).do(http.MethodGet, "/", nil)
	h := rec.Header()
	if !strings.Contains(h.Get("Content-Security-Policy"), "https://www.youtube-nocookie.com") {
		t.Errorf("CSP does not allow video embeds: %q", h.Get("Content-Security-Policy"))
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", h.Get("X-Frame-Options"))
	}
	if vary := strings.Join(h.Values("Vary"), ", "); !strings.Contains(vary, "HX-Request") {
		t.Errorf("Vary = %q, want HX-Request", vary)
	}
}
