package pagecraft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

// fixtureFile is the YAML layout read by ParseFixtures:
//
//	documents:
//	  - type: page
//	    title: About
//	    published: true
//	    sections:
//	      - kind: hero
//	        content:
//	          heading: Hello
type fixtureFile struct {
	Documents []fixtureDocument `yaml:"documents"`
}

type fixtureDocument struct {
	Type       string           `yaml:"type"`
	Slug       string           `yaml:"slug"`
	Title      string           `yaml:"title"`
	Summary    string           `yaml:"summary"`
	Tags       []string         `yaml:"tags"`
	Date       string           `yaml:"date"`
	CoverImage string           `yaml:"cover_image"`
	Published  bool             `yaml:"published"`
	ShowInNav  bool             `yaml:"show_in_nav"`
	NavOrder   int              `yaml:"nav_order"`
	Sections   []fixtureSection `yaml:"sections"`
}

type fixtureSection struct {
	Kind    string         `yaml:"kind"`
	Hidden  bool           `yaml:"hidden"`
	Content map[string]any `yaml:"content"`
}

// ParseFixtures reads documents from YAML. Section content maps use the
// same field names as the JSON export. Every document is validated.
func ParseFixtures(r io.Reader) ([]content.Document, error) {
	var f fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	docs := make([]content.Document, 0, len(f.Documents))
	for i, fd := range f.Documents {
		d, err := fd.document()
		if err != nil {
			return nil, fmt.Errorf("fixture %d (%s): %w", i+1, fd.Title, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (fd fixtureDocument) document() (content.Document, error) {
	t, err := content.ParseDocType(fd.Type)
	if err != nil {
		return content.Document{}, err
	}
	d := content.NewDocument(t, fd.Title)
	if fd.Slug != "" {
		d.Slug = fd.Slug
	}
	if fd.Date != "" {
		d.Date = fd.Date
	}
	d.Summary = fd.Summary
	d.Tags = content.NormalizeTags(fd.Tags)
	d.CoverImage = fd.CoverImage
	d.Published = fd.Published
	d.ShowInNav = fd.ShowInNav
	d.NavOrder = fd.NavOrder

	for _, sec := range fd.Sections {
		kind := content.Kind(sec.Kind)
		// Fixtures are written by hand, so a typo must not be stored as an
		// unknown section.
		if _, ok := content.Lookup(kind); !ok {
			return content.Document{}, fmt.Errorf("%w: %q", content.ErrUnknownKind, sec.Kind)
		}
		raw, err := json.Marshal(sec.Content)
		if err != nil {
			return content.Document{}, fmt.Errorf("section %s: %w", kind, err)
		}
		c, err := content.DecodeContent(kind, func(target any) error {
			if sec.Content == nil {
				return nil
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			return dec.Decode(target)
		})
		if err != nil {
			return content.Document{}, fmt.Errorf("section %s: %w", kind, err)
		}
		d.Sections = append(d.Sections, content.Section{
			ID:      uuid.NewString(),
			Kind:    kind,
			Hidden:  sec.Hidden,
			Content: c,
		})
	}
	return d, d.Validate()
}

// Seed stores docs, replacing documents that already use the same type and
// slug. It returns the number of documents written.
func Seed(ctx context.Context, s store.Store, docs []content.Document) (int, error) {
	n := 0
	for _, d := range docs {
		existing, err := s.GetBySlug(ctx, d.Type, d.Slug)
		switch {
		case err == nil:
			d.ID = existing.ID
			d.CreatedAt = existing.CreatedAt
		case !errors.Is(err, store.ErrNotFound):
			return n, err
		}
		if err := s.SaveDocument(ctx, &d); err != nil {
			return n, fmt.Errorf("seed %s %q: %w", d.Type, d.Slug, err)
		}
		n++
	}
	return n, nil
}
