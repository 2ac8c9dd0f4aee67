package views

import (
	"github.com/eringen/pagecraft/analytics"
	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

// Site holds site-wide settings. Every page receives it so nothing is
// hardcoded in templates.
type Site struct {
	Name        string
	URL         string
	Description string
	Author      string
	// Nav lists the published pages shown in the header, in nav order.
	Nav []content.Document
	// Analytics includes the tracking script when true.
	Analytics bool
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
}

// HomeData is the blog index.
type HomeData struct {
	Site      Site
	Meta      PageMeta
	Posts     []content.Document
	Tags      []string
	ActiveTag string
}

// DocumentData renders a post or a page.
type DocumentData struct {
	Site    Site
	Meta    PageMeta
	Doc     content.Document
	Related []content.Document
	// Preview marks a draft rendered for the admin.
	Preview bool
}

// ErrorData renders the 404 and 500 pages.
type ErrorData struct {
	Site Site
	Meta PageMeta
}

// LoginData renders the admin login form.
type LoginData struct {
	Site      Site
	ShowError bool
	CSRF      string
}

// DashboardData lists every document for the admin.
type DashboardData struct {
	Site    Site
	Posts   []content.Document
	Pages   []content.Document
	Message string
	CSRF    string
}

// EditorData renders the document editor.
type EditorData struct {
	Site    Site
	Doc     content.Document
	Kinds   []content.Spec
	Message string
	Error   string
	CSRF    string
}

// SectionsData renders the editable section list of a document.
type SectionsData struct {
	Doc  content.Document
	CSRF string
	// Errors maps a section id to the validation message shown on its card.
	Errors map[string]string
	// Message reports a rejected operation on the whole list.
	Message string
}

// SectionCard is one entry of the editable section list.
type SectionCard struct {
	DocID   string
	Section content.Section
	Label   string
	Known   bool
	Index   int
	Count   int
	Error   string
	CSRF    string
}

// First reports whether the card cannot move up.
func (c SectionCard) First() bool { return c.Index == 0 }

// Last reports whether the card cannot move down.
func (c SectionCard) Last() bool { return c.Index == c.Count-1 }

// Cards returns the template view of every section in document order.
func (d SectionsData) Cards() []SectionCard {
	cards := make([]SectionCard, len(d.Doc.Sections))
	for i, s := range d.Doc.Sections {
		label, known := string(s.Kind)+" (unavailable)", false
		if spec, ok := content.Lookup(s.Kind); ok {
			label, known = spec.Label, true
		}
		cards[i] = SectionCard{
			DocID:   d.Doc.ID,
			Section: s,
			Label:   label,
			Known:   known,
			Index:   i,
			Count:   len(d.Doc.Sections),
			Error:   d.Errors[s.ID],
			CSRF:    d.CSRF,
		}
	}
	return cards
}

// Card returns the card of section id.
func (d SectionsData) Card(id string) (SectionCard, bool) {
	for _, c := range d.Cards() {
		if c.Section.ID == id {
			return c, true
		}
	}
	return SectionCard{}, false
}

// MediaData renders the media library.
type MediaData struct {
	Site  Site
	Media []store.Media
	Error string
	CSRF  string
}

// AnalyticsData renders the analytics dashboard.
type AnalyticsData struct {
	Site    Site
	CSRF    string
	Enabled bool
	Period  string
	Periods []string
	Report  analytics.StatsResponse
}

// MaxViews is the largest bucket of the views chart, at least 1.
func (d AnalyticsData) MaxViews() int {
	n := 1
	if d.Report.Stats == nil {
		return n
	}
	for _, b := range d.Report.Stats.Views {
		n = max(n, b.Views)
	}
	return n
}
