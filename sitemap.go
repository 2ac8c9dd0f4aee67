package pagecraft

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) buildSitemap(pages, posts []content.Document) sitemapURLSet {
	site := a.site()
	urls := make([]sitemapURL, 0, 1+len(pages)+len(posts))
	urls = append(urls, sitemapURL{Loc: views.BuildURL(site.URL)})
	for _, list := range [][]content.Document{pages, posts} {
		for _, d := range list {
			u := sitemapURL{Loc: views.DocumentURL(site, d), LastMod: d.Date}
			if !d.UpdatedAt.IsZero() {
				u.LastMod = d.UpdatedAt.UTC().Format(content.DateLayout)
			}
			urls = append(urls, u)
		}
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	pages, err := a.Cache.Pages(ctx)
	if err != nil {
		return err
	}
	posts, err := a.Cache.Posts(ctx, "")
	if err != nil {
		return err
	}
	return writeXML(c, "application/xml; charset=utf-8", a.buildSitemap(pages, posts))
}
