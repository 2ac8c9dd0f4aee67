package pagecraft

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/views"
)

// quote is a section kind registered the way a site adds its own kinds.
type quote struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

const kindQuote content.Kind = "quote"

func (q *quote) Kind() content.Kind { return kindQuote }

func (q *quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &content.ValidationError{Field: "text", Message: "is required"}
	}
	return nil
}

func (q *quote) Decode(form url.Values) error {
	*q = quote{Text: strings.TrimSpace(form.Get("text")), Author: strings.TrimSpace(form.Get("author"))}
	return nil
}

func init() {
	err := content.Register(content.Spec{
		Kind:        kindQuote,
		Label:       "Quote",
		Description: "A pull quote with attribution",
		New:         func() content.Content { return &quote{} },
		Default:     func() content.Content { return &quote{Text: "Say something memorable."} },
	})
	if err != nil {
		panic(err)
	}
}

// quoteTemplates supplies the public and editor templates of kindQuote.
// Every test App gets them; without them Init refuses to start.
var quoteTemplates = views.WithTemplates(fstest.MapFS{
	"quote.html": {Data: []byte(`{{define "section/quote"}}<blockquote class="quote">{{.Text}}{{with .Author}}<cite>{{.}}</cite>{{end}}</blockquote>{{end}}
{{define "editor/quote"}}<label>Quote <textarea name="text">{{.Text}}</textarea></label><label>Author <input name="author" value="{{.Author}}"></label>{{end}}`)},
}, "*.html")

func TestInitRequiresKindTemplates(t *testing.T) {
	app := New(testConfig(), WithStaticDir(t.TempDir()))
	err := app.Init(context.Background())
	if !errors.Is(err, views.ErrMissingTemplate) {
		t.Fatalf("Init without the quote templates: got %v, want ErrMissingTemplate", err)
	}
	for _, name := range []string{"section/quote", "editor/quote"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error does not name %s: %v", name, err)
		}
	}
}

func TestCustomKindThroughEditor(t *testing.T) {
	app, s := newTestApp(t)
	page := content.NewDocument(content.TypePage, "Sayings")
	page.Published = true
	saveDoc(t, s, page)

	c := newClient(t, app)
	c.login()
	c.htmx = true
	base := "/admin/documents/" + page.ID + "/sections/"

	rec := c.do(http.MethodPost, base, url.Values{"kind": {string(kindQuote)}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="text"`) {
		t.Fatalf("add quote: expected the list with the quote editor, got %d:\n%s", rec.Code, rec.Body.String())
	}
	d := getDoc(t, s, page.ID)
	if len(d.Sections) != 1 || d.Sections[0].Kind != kindQuote {
		t.Fatalf("unexpected sections %v", sectionKinds(d))
	}
	sid := d.Sections[0].ID

	rec = c.do(http.MethodPost, base+sid+"/", url.Values{"text": {"  "}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "text: is required") {
		t.Fatalf("empty quote: expected the card with the error, got %d", rec.Code)
	}

	rec = c.do(http.MethodPost, base+sid+"/", url.Values{"text": {"Less is more."}, "author": {"Mies"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("update quote: expected 200, got %d", rec.Code)
	}
	d = getDoc(t, s, page.ID)
	if q := d.Sections[0].Content.(*quote); q.Text != "Less is more." || q.Author != "Mies" {
		t.Fatalf("quote not saved: %+v", q)
	}

	rec = newClient(t, app).do(http.MethodGet, "/sayings/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `<blockquote class="quote">Less is more.<cite>Mies</cite></blockquote>`) {
		t.Fatalf("public page misses the quote, got %d:\n%s", rec.Code, rec.Body.String())
	}
}

func TestCustomRoutesAndMiddleware(t *testing.T) {
	app, _ := newTestApp(t,
		WithMiddleware(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Response().Header().Set("X-Site", "pagecraft-test")
				return next(c)
			}
		}),
		WithCustomRoutes(func(a *App) {
			a.Echo.GET("/hello/", func(c echo.Context) error {
				return c.String(http.StatusOK, "hello from "+a.Config.Name)
			})
		}),
	)
	c := newClient(t, app)

	rec := c.do(http.MethodGet, "/hello/", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello from Test Blog" {
		t.Fatalf("custom route: got %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Site"); got != "pagecraft-test" {
		t.Errorf("custom middleware header = %q", got)
	}
	if got := c.do(http.MethodGet, "/", nil).Header().Get("X-Site"); got != "pagecraft-test" {
		t.Errorf("middleware did not run on built-in routes, header = %q", got)
	}
}
