// Package store persists pagecraft documents and uploaded media.
//
// Two backends implement Store: MongoStore keeps documents in a MongoDB
// collection and MemoryStore keeps them in a go-memdb database for tests,
// demos and single-process setups.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/eringen/pagecraft/content"
)

var (
	// ErrNotFound is returned when a document or media item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlugTaken is returned when another document of the same type
	// already uses the slug.
	ErrSlugTaken = errors.New("slug already in use")
)

// Filter narrows ListDocuments. The zero value matches every document.
type Filter struct {
	Type          content.DocType
	PublishedOnly bool
	Tag           string
}

func (f Filter) match(d content.Document) bool {
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.PublishedOnly && !d.Published {
		return false
	}
	if f.Tag != "" && !d.HasTag(f.Tag) {
		return false
	}
	return true
}

// Media describes an uploaded image under the uploads directory.
type Media struct {
	Filename     string    `json:"filename" bson:"_id"`
	OriginalName string    `json:"original_name" bson:"original_name"`
	Width        int       `json:"width" bson:"width"`
	Height       int       `json:"height" bson:"height"`
	Size         int64     `json:"size" bson:"size"`
	UploadedAt   time.Time `json:"uploaded_at" bson:"uploaded_at"`
}

// URL returns the public path of the file.
func (m Media) URL() string {
	return "/public/uploads/" + m.Filename
}

// Store is the persistence contract used by the web application.
type Store interface {
	ListDocuments(ctx context.Context, f Filter) ([]content.Document, error)
	GetDocument(ctx context.Context, id string) (content.Document, error)
	GetBySlug(ctx context.Context, t content.DocType, slug string) (content.Document, error)
	// SaveDocument inserts or replaces d by ID, filling CreatedAt on first
	// save and UpdatedAt on every save.
	SaveDocument(ctx context.Context, d *content.Document) error
	// DeleteDocument removes the document. Deleting a missing id is not an error.
	DeleteDocument(ctx context.Context, id string) error
	// ListTags returns the sorted tags of published posts.
	ListTags(ctx context.Context) ([]string, error)

	ListMedia(ctx context.Context) ([]Media, error)
	SaveMedia(ctx context.Context, m Media) error
	DeleteMedia(ctx context.Context, filename string) error

	Close() error
}

// SortDocuments orders docs the way listings show them: pages first by nav
// order, then posts newest first. Ties fall back to the title.
func SortDocuments(docs []content.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Type != b.Type {
			return a.Type == content.TypePage
		}
		if a.Type == content.TypePage && a.NavOrder != b.NavOrder {
			return a.NavOrder < b.NavOrder
		}
		if a.Type == content.TypePost && a.Date != b.Date {
			return a.Date > b.Date
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
}

func sortMedia(items []Media) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].UploadedAt.Equal(items[j].UploadedAt) {
			return items[i].UploadedAt.After(items[j].UploadedAt)
		}
		return items[i].Filename < items[j].Filename
	})
}

// prepare normalizes d before it is written.
func prepare(d *content.Document, now time.Time) {
	d.Tags = content.NormalizeTags(d.Tags)
	if d.Sections == nil {
		d.Sections = []content.Section{}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

// now is truncated to what MongoDB can store so both backends agree.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
