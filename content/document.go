// Package content holds the pagecraft data model: documents (blog posts and
// static pages) built from an ordered list of sections, and the registry of
// section kinds that gives every section its schema, default value and
// validation rules.
package content

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DocType distinguishes blog posts from static pages.
type DocType string

const (
	TypePost DocType = "post"
	TypePage DocType = "page"
)

// DateLayout is the format of Document.Date.
const DateLayout = "2006-01-02"

// ParseDocType converts a form or URL value to a DocType.
func ParseDocType(s string) (DocType, error) {
	switch DocType(s) {
	case TypePost, TypePage:
		return DocType(s), nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Document is a blog post or a static page.
type Document struct {
	ID         string    `json:"id"`
	Type       DocType   `json:"type"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Date       string    `json:"date"`
	CoverImage string    `json:"cover_image,omitempty"`
	Published  bool      `json:"published"`
	ShowInNav  bool      `json:"show_in_nav,omitempty"`
	NavOrder   int       `json:"nav_order,omitempty"`
	Sections   []Section `json:"sections"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewDocument returns an unpublished document of type t dated today.
func NewDocument(t DocType, title string) Document {
	return Document{
		ID:       uuid.NewString(),
		Type:     t,
		Title:    title,
		Slug:     Slugify(title),
		Date:     time.Now().Format(DateLayout),
		Sections: []Section{},
	}
}

// Link returns the public path of the document.
func (d Document) Link() string {
	if d.Type == TypePage {
		return "/" + d.Slug + "/"
	}
	return "/blog/" + d.Slug + "/"
}

// VisibleSections returns the sections that are not hidden, in order.
func (d Document) VisibleSections() []Section {
	out := make([]Section, 0, len(d.Sections))
	for _, s := range d.Sections {
		if !s.Hidden {
			out = append(out, s)
		}
	}
	return out
}

// ValidationError reports a problem with a single document or section field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// reservedPageSlugs would shadow fixed routes if used by a page.
var reservedPageSlugs = map[string]struct{}{
	"admin":       {},
	"blog":        {},
	"public":      {},
	"api":         {},
	"metrics":     {},
	"feed.xml":    {},
	"sitemap.xml": {},
	"robots.txt":  {},
	"favicon.svg": {},
}

// Validate checks the document metadata and every section.
func (d Document) Validate() error {
	if _, err := ParseDocType(string(d.Type)); err != nil {
		return invalid("type", "%v", err)
	}
	if d.Title == "" {
		return invalid("title", "is required")
	}
	if err := checkLen("title", d.Title, maxHeadingLen); err != nil {
		return err
	}
	if !slugPattern.MatchString(d.Slug) {
		return invalid("slug", "must contain only lowercase letters, digits and single dashes")
	}
	if d.Type == TypePage {
		if _, ok := reservedPageSlugs[d.Slug]; ok {
			return invalid("slug", "%q is reserved", d.Slug)
		}
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return invalid("date", "must use YYYY-MM-DD")
	}
	if d.CoverImage != "" && !validURL(d.CoverImage) {
		return invalid("cover_image", "is not an allowed URL")
	}
	for i, s := range d.Sections {
		if s.Content == nil {
			return invalid(fmt.Sprintf("sections[%d]", i), "has no content")
		}
		if err := s.Content.Validate(); err != nil {
			return fmt.Errorf("section %d (%s): %w", i+1, s.Kind, err)
		}
	}
	return nil
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
