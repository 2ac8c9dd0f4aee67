package pagecraft

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
	"github.com/eringen/pagecraft/views"
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	tag := c.QueryParam("tag")
	posts, err := a.Cache.Posts(ctx, tag)
	if err != nil {
		return err
	}
	tags, err := a.Cache.Tags(ctx)
	if err != nil {
		return err
	}
	site, err := a.siteWithNav(ctx)
	if err != nil {
		return err
	}
	data := views.HomeData{
		Site:      site,
		Meta:      views.HomeMeta(site),
		Posts:     posts,
		Tags:      tags,
		ActiveTag: tag,
	}
	if IsHTMX(c) && c.QueryParam("partial") == "posts" {
		return Render(c, a.Views.HomePosts(data))
	}
	return Render(c, a.Views.Home(data))
}

func (a *App) handlePost(c echo.Context) error {
	return a.renderPublished(c, content.TypePost)
}

func (a *App) handlePage(c echo.Context) error {
	return a.renderPublished(c, content.TypePage)
}

func (a *App) renderPublished(c echo.Context, t content.DocType) error {
	ctx := c.Request().Context()
	doc, err := a.Cache.Get(ctx, t, c.Param("slug"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	site, err := a.siteWithNav(ctx)
	if err != nil {
		return err
	}
	data := views.DocumentData{Site: site, Meta: views.DocumentMeta(site, doc), Doc: doc}
	if t == content.TypePost {
		posts, err := a.Cache.Posts(ctx, "")
		if err != nil {
			return err
		}
		data.Related = content.FilterRelated(doc, posts)
	}
	return Render(c, a.Views.Document(data))
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	sitemap := strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml"
	body := "User-agent: *\nAllow: /\nDisallow: /admin/\n\nSitemap: " + sitemap + "\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if a.Views == nil || IsHTMX(c) || (code != http.StatusNotFound && code < 500) {
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}

	site := a.site()
	if code == http.StatusNotFound {
		_ = RenderStatus(c, code, a.Views.NotFound(views.ErrorData{Site: site, Meta: views.PageMeta{Title: "Not found"}}))
		return
	}
	c.Logger().Errorf("server error: %v", err)
	_ = RenderStatus(c, code, a.Views.ServerError(views.ErrorData{Site: site, Meta: views.PageMeta{Title: "Server error"}}))
}
