package pagecraft

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

// DocumentCache is an in-memory cache of published documents and post tags
// with TTL. The public site reads only from the cache; admin writes call
// Invalidate.
//
// Cached documents are shared between requests and must not be modified.
type DocumentCache struct {
	mu      sync.RWMutex
	posts   []content.Document
	pages   []content.Document
	tags    []string
	fetched time.Time
	ttl     time.Duration
	store   store.Store
}

// NewDocumentCache creates a DocumentCache backed by s.
func NewDocumentCache(s store.Store, ttl time.Duration) *DocumentCache {
	return &DocumentCache{store: s, ttl: ttl}
}

func (c *DocumentCache) valid() bool {
	return c.posts != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *DocumentCache) Invalidate() {
	c.mu.Lock()
	c.posts, c.pages, c.tags = nil, nil, nil
	c.mu.Unlock()
}

func (c *DocumentCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	docs, err := c.store.ListDocuments(ctx, store.Filter{PublishedOnly: true})
	if err != nil {
		return err
	}
	tags, err := c.store.ListTags(ctx)
	if err != nil {
		return err
	}
	posts, pages := []content.Document{}, []content.Document{}
	for _, d := range docs {
		if d.Type == content.TypePage {
			pages = append(pages, d)
		} else {
			posts = append(posts, d)
		}
	}
	c.posts, c.pages, c.tags = posts, pages, tags
	c.fetched = time.Now()
	return nil
}

// snapshot returns the cached lists after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *DocumentCache) snapshot(ctx context.Context) (posts, pages []content.Document, tags []string, err error) {
	c.mu.RLock()
	if c.valid() {
		posts, pages, tags = c.posts, c.pages, c.tags
		c.mu.RUnlock()
		return posts, pages, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, nil, err
	}
	return c.posts, c.pages, c.tags, nil
}

// Posts returns published posts, newest first, optionally filtered by tag.
func (c *DocumentCache) Posts(ctx context.Context, tag string) ([]content.Document, error) {
	posts, _, _, err := c.snapshot(ctx)
	if err != nil || tag == "" {
		return posts, err
	}
	var filtered []content.Document
	for _, p := range posts {
		if p.HasTag(tag) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Pages returns published pages in navigation order.
func (c *DocumentCache) Pages(ctx context.Context) ([]content.Document, error) {
	_, pages, _, err := c.snapshot(ctx)
	return pages, err
}

// Nav returns the published pages shown in the site navigation.
func (c *DocumentCache) Nav(ctx context.Context) ([]content.Document, error) {
	pages, err := c.Pages(ctx)
	if err != nil {
		return nil, err
	}
	var nav []content.Document
	for _, p := range pages {
		if p.ShowInNav {
			nav = append(nav, p)
		}
	}
	return nav, nil
}

// Tags returns the distinct tags of published posts.
func (c *DocumentCache) Tags(ctx context.Context) ([]string, error) {
	_, _, tags, err := c.snapshot(ctx)
	return tags, err
}

// Get returns the published document of type t with slug.
func (c *DocumentCache) Get(ctx context.Context, t content.DocType, slug string) (content.Document, error) {
	posts, pages, _, err := c.snapshot(ctx)
	if err != nil {
		return content.Document{}, err
	}
	list := posts
	if t == content.TypePage {
		list = pages
	}
	for _, d := range list {
		if d.Slug == slug {
			return d, nil
		}
	}
	return content.Document{}, store.ErrNotFound
}
