package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/pagecraft/content"
)

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// JoinTags formats a tag slice as a comma-separated string for form fields.
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// FormatDate turns a stored YYYY-MM-DD date into "January 2, 2006".
func FormatDate(date string) string {
	t, err := time.Parse(content.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}

// DocumentURL returns the absolute URL of d on site.
func DocumentURL(site Site, d content.Document) string {
	return BuildURL(site.URL, d.Link())
}

// WebsiteJSONLD produces a Schema.org WebSite JSON-LD block.
func WebsiteJSONLD(site Site) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      BuildURL(site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	if site.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  site.Author,
		}
	}
	return marshalJSONLD(data)
}

// DocumentJSONLD produces a BlogPosting block for posts and a WebPage block
// for pages.
func DocumentJSONLD(site Site, d content.Document) string {
	docURL := DocumentURL(site, d)
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebPage",
		"name":        d.Title,
		"description": d.Summary,
		"url":         docURL,
	}
	if d.Type == content.TypePost {
		data = map[string]any{
			"@context":      "https://schema.org",
			"@type":         "BlogPosting",
			"headline":      d.Title,
			"description":   d.Summary,
			"datePublished": d.Date,
			"url":           docURL,
			"publisher": map[string]string{
				"@type": "Organization",
				"name":  site.Name,
			},
			"mainEntityOfPage": map[string]string{
				"@type": "WebPage",
				"@id":   docURL,
			},
		}
		if !d.UpdatedAt.IsZero() {
			data["dateModified"] = d.UpdatedAt.Format(content.DateLayout)
		}
		if len(d.Tags) > 0 {
			data["keywords"] = strings.Join(d.Tags, ", ")
		}
		if site.Author != "" {
			data["author"] = map[string]string{
				"@type": "Person",
				"name":  site.Author,
			}
		}
	}
	if d.CoverImage != "" {
		data["image"] = absolute(site, d.CoverImage)
	}
	return marshalJSONLD(data)
}

// HomeMeta returns the metadata of the blog index.
func HomeMeta(site Site) PageMeta {
	return PageMeta{
		Title:       site.Name,
		Description: site.Description,
		URL:         BuildURL(site.URL),
		OGType:      "website",
		JSONLD:      WebsiteJSONLD(site),
	}
}

// DocumentMeta returns the metadata of a post or page.
func DocumentMeta(site Site, d content.Document) PageMeta {
	m := PageMeta{
		Title:       d.Title + " | " + site.Name,
		Description: d.Summary,
		URL:         DocumentURL(site, d),
		OGType:      "website",
		JSONLD:      DocumentJSONLD(site, d),
	}
	if m.Description == "" {
		m.Description = site.Description
	}
	if d.Type == content.TypePost {
		m.OGType = "article"
	}
	if d.CoverImage != "" {
		m.Image = absolute(site, d.CoverImage)
	}
	return m
}

func absolute(site Site, ref string) string {
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return strings.TrimRight(site.URL, "/") + ref
	}
	return ref
}

func marshalJSONLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
