package pagecraft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
)

func titles(docs []content.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestDocumentCache(t *testing.T) {
	s, err := store.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	seedSite(t, s)
	ctx := context.Background()
	cache := NewDocumentCache(s, time.Hour)

	posts, err := cache.Posts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Second post", "First post"}, titles(posts)); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}

	tagged, _ := cache.Posts(ctx, "web")
	if diff := cmp.Diff([]string{"Second post"}, titles(tagged)); diff != "" {
		t.Errorf("tagged posts mismatch (-want +got):\n%s", diff)
	}

	nav, _ := cache.Nav(ctx)
	if diff := cmp.Diff([]string{"About"}, titles(nav)); diff != "" {
		t.Errorf("nav mismatch (-want +got):\n%s", diff)
	}

	tags, _ := cache.Tags(ctx)
	if diff := cmp.Diff([]string{"go", "web"}, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	if _, err := cache.Get(ctx, content.TypePost, "draft-post"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("draft served from cache: %v", err)
	}
	if _, err := cache.Get(ctx, content.TypePage, "first-post"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("post served as page: %v", err)
	}

	// Writes are invisible until the cache is invalidated.
	late := content.NewDocument(content.TypePost, "Late post")
	late.Date, late.Published = "2024-06-01", true
	saveDoc(t, s, late)
	if _, err := cache.Get(ctx, content.TypePost, "late-post"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected a stale cache before Invalidate, got %v", err)
	}
	cache.Invalidate()
	if _, err := cache.Get(ctx, content.TypePost, "late-post"); err != nil {
		t.Fatalf("expected the new post after Invalidate: %v", err)
	}
}

func TestDocumentCacheExpires(t *testing.T) {
	s, err := store.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	cache := NewDocumentCache(s, time.Millisecond)
	if posts, _ := cache.Posts(ctx, ""); len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}

	d := content.NewDocument(content.TypePost, "Fresh")
	d.Published = true
	saveDoc(t, s, d)
	time.Sleep(5 * time.Millisecond)
	if _, err := cache.Get(ctx, content.TypePost, "fresh"); err != nil {
		t.Fatalf("expected the cache to reload after its TTL: %v", err)
	}
}
