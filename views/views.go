// Package views renders pagecraft pages. Templates are embedded html/template
// files exposed as templ.Component values, so handlers render them exactly
// like generated templ components.
//
// Every section kind needs two templates: "section/<kind>" for the public
// page and "editor/<kind>" for its admin form. New refuses to build a Views
// when a registered kind is missing either one.
package views

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/pagecraft/analytics"
	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrMissingTemplate is returned by New when a registered section kind has
// no public or editor template.
var ErrMissingTemplate = errors.New("missing section template")

// Views is the parsed template set.
type Views struct {
	t *template.Template
}

type options struct {
	extra []extraTemplates
}

type extraTemplates struct {
	fsys     fs.FS
	patterns []string
}

// Option customizes New.
type Option func(*options)

// WithTemplates parses additional templates, typically the section and
// editor templates of custom kinds.
func WithTemplates(fsys fs.FS, patterns ...string) Option {
	return func(o *options) {
		o.extra = append(o.extra, extraTemplates{fsys: fsys, patterns: patterns})
	}
}

// New parses the templates and checks that every kind in specs can be
// rendered and edited.
func New(specs []content.Spec, opts ...Option) (*Views, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := &Views{}
	t, err := template.New("pagecraft").Funcs(v.funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, x := range o.extra {
		if t, err = t.ParseFS(x.fsys, x.patterns...); err != nil {
			return nil, fmt.Errorf("parse extra templates: %w", err)
		}
	}
	v.t = t

	var missing []error
	for _, spec := range specs {
		for _, name := range []string{sectionTemplate(spec.Kind), editorTemplate(spec.Kind)} {
			if t.Lookup(name) == nil {
				missing = append(missing, fmt.Errorf("%w: %s", ErrMissingTemplate, name))
			}
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	return v, nil
}

func sectionTemplate(k content.Kind) string { return "section/" + string(k) }
func editorTemplate(k content.Kind) string  { return "editor/" + string(k) }

func (v *Views) component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return v.t.ExecuteTemplate(w, name, data)
	})
}

func (v *Views) execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Section renders a single section for the public site. Sections of
// unknown kinds render nothing.
func (v *Views) Section(s content.Section) (template.HTML, error) {
	if _, ok := s.Content.(*content.Unknown); ok || s.Content == nil {
		return "", nil
	}
	body, err := v.execute(sectionTemplate(s.Kind), s.Content)
	if err != nil {
		return "", fmt.Errorf("render %s section: %w", s.Kind, err)
	}
	return v.execute("section/frame", struct {
		Section content.Section
		Body    template.HTML
	}{s, body})
}

// Editor renders the form fields of a section.
func (v *Views) Editor(s content.Section) (template.HTML, error) {
	if _, ok := s.Content.(*content.Unknown); ok || s.Content == nil {
		return v.execute("editor/unknown", s)
	}
	return v.execute(editorTemplate(s.Kind), s.Content)
}

func (v *Views) funcs() template.FuncMap {
	return template.FuncMap{
		"section": v.Section,
		"editor":  v.Editor,
		"markdown": func(s string) template.HTML {
			return template.HTML(markdown.HTML(s))
		},
		"jsonLD": func(s string) template.JS {
			return template.JS(s)
		},
		"formatDate": FormatDate,
		"joinTags":   JoinTags,
		"joinLines": func(lines []string) string {
			return strings.Join(lines, "\n")
		},
		"pathEscape":  url.PathEscape,
		"queryEscape": url.QueryEscape,
		"add": func(a, b int) int {
			return a + b
		},
		"year": func() int {
			return time.Now().Year()
		},
		"docTable": func(docs []content.Document, csrf string) documentTable {
			return documentTable{Docs: docs, CSRF: csrf}
		},
		"sectionsOf": func(d content.Document, csrf string) SectionsData {
			return SectionsData{Doc: d, CSRF: csrf}
		},
		"dimension": func(title string, rows []analytics.DimensionStat) dimensionTable {
			return dimensionTable{Title: title, Rows: rows}
		},
		"action": func(base, suffix, label, title, field, value, csrf string) sectionAction {
			return sectionAction{URL: base + suffix, Label: label, Title: title, Field: field, Value: value, CSRF: csrf}
		},
	}
}

type dimensionTable struct {
	Title string
	Rows  []analytics.DimensionStat
}

type documentTable struct {
	Docs []content.Document
	CSRF string
}

// sectionAction is a one-button form on a section card.
type sectionAction struct {
	URL   string
	Label string
	Title string
	Field string
	Value string
	CSRF  string
}

// Home renders the blog index.
func (v *Views) Home(d HomeData) templ.Component { return v.component("home", d) }

// HomePosts renders only the post list, for htmx tag filtering.
func (v *Views) HomePosts(d HomeData) templ.Component { return v.component("home/posts", d) }

// Document renders a post or page.
func (v *Views) Document(d DocumentData) templ.Component { return v.component("document", d) }

func (v *Views) NotFound(d ErrorData) templ.Component    { return v.component("not-found", d) }
func (v *Views) ServerError(d ErrorData) templ.Component { return v.component("server-error", d) }

func (v *Views) AdminLogin(d LoginData) templ.Component         { return v.component("admin/login", d) }
func (v *Views) AdminDashboard(d DashboardData) templ.Component { return v.component("admin/dashboard", d) }
func (v *Views) AdminEditor(d EditorData) templ.Component       { return v.component("admin/editor", d) }

// AdminSections renders the section list of the editor, the htmx target of
// every section operation.
func (v *Views) AdminSections(d SectionsData) templ.Component {
	return v.component("admin/sections", d)
}

// AdminSectionCard renders a single section card, returned after the
// section's form is saved.
func (v *Views) AdminSectionCard(c SectionCard) templ.Component {
	return v.component("admin/section-card", c)
}

func (v *Views) AdminMedia(d MediaData) templ.Component     { return v.component("admin/media", d) }
func (v *Views) AdminMediaGrid(d MediaData) templ.Component { return v.component("admin/media-grid", d) }

// AdminAnalytics renders the analytics dashboard.
func (v *Views) AdminAnalytics(d AnalyticsData) templ.Component {
	return v.component("admin/analytics", d)
}
