package pagecraft

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/analytics"
	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
	"github.com/eringen/pagecraft/views"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(views.LoginData{Site: a.site(), CSRF: CsrfToken(c)}))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		c.Logger().Warnf("failed admin login from %s", ip)
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(views.LoginData{
			Site:      a.site(),
			ShowError: true,
			CSRF:      CsrfToken(c),
		}))
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	docs, err := a.Store.ListDocuments(c.Request().Context(), store.Filter{})
	if err != nil {
		return err
	}
	data := views.DashboardData{Site: a.site(), Message: msg, CSRF: CsrfToken(c)}
	for _, d := range docs {
		if d.Type == content.TypePage {
			data.Pages = append(data.Pages, d)
		} else {
			data.Posts = append(data.Posts, d)
		}
	}
	return Render(c, a.Views.AdminDashboard(data))
}

func (a *App) registerDocumentRoutes(g *echo.Group) {
	g.POST("/documents/", a.handleDocumentCreate)
	g.GET("/documents/:id/", a.handleEditor)
	g.POST("/documents/:id/", a.handleDocumentSave)
	g.POST("/documents/:id/delete/", a.handleDocumentDelete)
	g.DELETE("/documents/:id/", a.handleDocumentDelete)
	g.POST("/documents/:id/publish/", a.handleDocumentPublish)
	g.GET("/documents/:id/preview/", a.handlePreview)
	g.GET("/documents/:id/export/", a.handleExport)
}

func dashboardURL(msg string) string {
	return "/admin/?msg=" + url.QueryEscape(msg)
}

func editorURL(id, msg string) string {
	u := "/admin/documents/" + id + "/"
	if msg != "" {
		u += "?msg=" + url.QueryEscape(msg)
	}
	return u
}

// loadDocument fetches the document named by the :id parameter, mapping a
// missing document to a 404.
func (a *App) loadDocument(c echo.Context) (content.Document, error) {
	doc, err := a.Store.GetDocument(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return doc, echo.ErrNotFound
	}
	return doc, err
}

// saveDocument validates and stores doc, then refreshes the public cache.
func (a *App) saveDocument(c echo.Context, doc *content.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := a.Store.SaveDocument(c.Request().Context(), doc); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.metrics.documentSaved(doc.Type)
	return nil
}

// editDocument runs fn on the current version of the :id document and
// saves the result. Edits are serialized so two concurrent section
// operations cannot lose each other's changes.
func (a *App) editDocument(c echo.Context, fn func(*content.Document) error) (content.Document, error) {
	a.docMu.Lock()
	defer a.docMu.Unlock()

	doc, err := a.loadDocument(c)
	if err != nil {
		return doc, err
	}
	if err := fn(&doc); err != nil {
		return doc, err
	}
	return doc, a.saveDocument(c, &doc)
}

// userMessage turns a save error into text for the editor, or "" when the
// error is not the user's to fix.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case content.IsValidation(err):
		return err.Error()
	case errors.Is(err, store.ErrSlugTaken):
		return "Another document already uses this slug."
	case errors.Is(err, content.ErrSectionNotFound),
		errors.Is(err, content.ErrKindMismatch),
		errors.Is(err, content.ErrInvalidOrder),
		errors.Is(err, content.ErrUnknownKind):
		return err.Error()
	}
	return ""
}

func (a *App) handleDocumentCreate(c echo.Context) error {
	t, err := content.ParseDocType(c.FormValue("type"))
	if err != nil {
		return c.Redirect(http.StatusSeeOther, dashboardURL("Unknown document type."))
	}
	title := strings.TrimSpace(c.FormValue("title"))
	doc := content.NewDocument(t, title)
	if doc.Slug == "" {
		doc.Slug = string(t) + "-" + doc.ID[:8]
	}

	a.docMu.Lock()
	err = a.saveDocument(c, &doc)
	if errors.Is(err, store.ErrSlugTaken) {
		doc.Slug += "-" + doc.ID[:8]
		err = a.saveDocument(c, &doc)
	}
	a.docMu.Unlock()

	if msg := userMessage(err); msg != "" {
		return c.Redirect(http.StatusSeeOther, dashboardURL(msg))
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, editorURL(doc.ID, "created"))
}

func (a *App) handleEditor(c echo.Context) error {
	doc, err := a.loadDocument(c)
	if err != nil {
		return err
	}
	return a.renderEditor(c, http.StatusOK, doc, c.QueryParam("msg"), "")
}

func (a *App) renderEditor(c echo.Context, code int, doc content.Document, msg, errMsg string) error {
	return RenderStatus(c, code, a.Views.AdminEditor(views.EditorData{
		Site:    a.site(),
		Doc:     doc,
		Kinds:   content.Specs(),
		Message: msg,
		Error:   errMsg,
		CSRF:    CsrfToken(c),
	}))
}

// decodeMeta copies the settings form onto d.
func decodeMeta(c echo.Context, d *content.Document) {
	d.Title = strings.TrimSpace(c.FormValue("title"))
	d.Slug = strings.TrimSpace(c.FormValue("slug"))
	if d.Slug == "" {
		d.Slug = content.Slugify(d.Title)
	}
	d.Summary = strings.TrimSpace(c.FormValue("summary"))
	if date := strings.TrimSpace(c.FormValue("date")); date != "" {
		d.Date = date
	}
	d.CoverImage = strings.TrimSpace(c.FormValue("cover_image"))
	d.Published = c.FormValue("published") != ""
	if d.Type == content.TypePost {
		d.Tags = content.SplitTags(c.FormValue("tags"))
		return
	}
	d.ShowInNav = c.FormValue("show_in_nav") != ""
	if n, err := strconv.Atoi(c.FormValue("nav_order")); err == nil {
		d.NavOrder = n
	}
}

func (a *App) handleDocumentSave(c echo.Context) error {
	var submitted content.Document
	doc, err := a.editDocument(c, func(d *content.Document) error {
		decodeMeta(c, d)
		submitted = *d
		return nil
	})
	if msg := userMessage(err); msg != "" {
		// Show the rejected values so the author can fix them.
		return a.renderEditor(c, http.StatusUnprocessableEntity, submitted, "", msg)
	}
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, editorURL(doc.ID, "saved"))
}

func (a *App) handleDocumentPublish(c echo.Context) error {
	doc, err := a.editDocument(c, func(d *content.Document) error {
		d.Published = !d.Published
		return nil
	})
	if msg := userMessage(err); msg != "" {
		return a.renderEditor(c, http.StatusUnprocessableEntity, doc, "", msg)
	}
	if err != nil {
		return err
	}
	msg := "unpublished"
	if doc.Published {
		msg = "published"
	}
	return c.Redirect(http.StatusSeeOther, editorURL(doc.ID, msg))
}

func (a *App) handleDocumentDelete(c echo.Context) error {
	a.docMu.Lock()
	doc, err := a.loadDocument(c)
	if err == nil {
		err = a.Store.DeleteDocument(c.Request().Context(), doc.ID)
	}
	a.docMu.Unlock()
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.metrics.documentDeleted(doc.Type)
	if IsHTMX(c) {
		return a.renderAdminDashboard(c, "deleted")
	}
	return c.Redirect(http.StatusSeeOther, dashboardURL("deleted"))
}

// handlePreview renders a document the way the public site would, drafts
// and hidden sections aside.
func (a *App) handlePreview(c echo.Context) error {
	doc, err := a.loadDocument(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	site, err := a.siteWithNav(ctx)
	if err != nil {
		return err
	}
	meta := views.DocumentMeta(site, doc)
	meta.Title = "Preview: " + meta.Title
	data := views.DocumentData{Site: site, Meta: meta, Doc: doc, Preview: true}
	if doc.Type == content.TypePost {
		posts, err := a.Cache.Posts(ctx, "")
		if err != nil {
			return err
		}
		data.Related = content.FilterRelated(doc, posts)
	}
	return Render(c, a.Views.Document(data))
}

func (a *App) handleExport(c echo.Context) error {
	doc, err := a.loadDocument(c)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export %s: %w", doc.ID, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", string(doc.Type)+"-"+doc.Slug+".json"))
	return c.JSONBlob(http.StatusOK, b)
}

func (a *App) handleAnalytics(c echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "week"
	}
	data := views.AnalyticsData{
		Site:    a.site(),
		CSRF:    CsrfToken(c),
		Enabled: a.analytics != nil,
		Period:  period,
		Periods: analytics.Periods,
	}
	if a.analytics != nil {
		report, err := a.analytics.Report(c, period)
		if err != nil {
			return err
		}
		data.Report = report
		data.Period = report.Stats.Period
	}
	return Render(c, a.Views.AdminAnalytics(data))
}
