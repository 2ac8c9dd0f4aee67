package content

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/eringen/pagecraft/markdown"
)

const (
	maxHeadingLen = 200
	maxTextLen    = 20000
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag field.
func SplitTags(field string) []string {
	return NormalizeTags(strings.Split(field, ","))
}

// SortedTags collects the distinct tags of docs in alphabetical order.
func SortedTags(docs []Document) []string {
	set := make(map[string]struct{})
	for _, d := range docs {
		for _, t := range d.Tags {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether d carries tag, ignoring case.
func (d Document) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range d.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// FilterRelated returns posts sharing at least one tag with current.
func FilterRelated(current Document, posts []Document) []Document {
	var related []Document
	for _, p := range posts {
		if p.ID == current.ID || p.Type != TypePost {
			continue
		}
		for _, t := range current.Tags {
			if p.HasTag(t) {
				related = append(related, p)
				break
			}
		}
	}
	return related
}

func validURL(raw string) bool {
	return markdown.SafeURL(raw) != ""
}

func checkURL(field, v string, required bool) error {
	if v == "" {
		if required {
			return invalid(field, "is required")
		}
		return nil
	}
	if !validURL(v) {
		return invalid(field, "must be a relative path or an http(s), mailto or tel URL")
	}
	return nil
}

func checkLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return invalid(field, "must be at most %d characters", max)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
