package pagecraft

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/views"
)

func (a *App) registerSectionRoutes(g *echo.Group) {
	g.POST("/documents/:id/sections/", a.handleSectionAdd)
	g.POST("/documents/:id/sections/reorder/", a.handleSectionReorder)
	g.POST("/documents/:id/sections/:sid/", a.handleSectionUpdate)
	g.POST("/documents/:id/sections/:sid/move/", a.handleSectionMove)
	g.POST("/documents/:id/sections/:sid/duplicate/", a.handleSectionDuplicate)
	g.POST("/documents/:id/sections/:sid/toggle/", a.handleSectionToggle)
	g.POST("/documents/:id/sections/:sid/delete/", a.handleSectionDelete)
	g.DELETE("/documents/:id/sections/:sid/", a.handleSectionDelete)
}

// sectionResult answers a section operation. htmx gets the refreshed
// section list, a plain form post goes back to the editor. A rejected
// operation shows the stored list with the message; htmx only swaps 2xx
// responses.
func (a *App) sectionResult(c echo.Context, doc content.Document, err error, msg string) error {
	if text := userMessage(err); text != "" {
		if IsHTMX(c) {
			if stored, err := a.Store.GetDocument(c.Request().Context(), doc.ID); err == nil {
				doc = stored
			}
			return Render(c, a.Views.AdminSections(views.SectionsData{
				Doc:     doc,
				CSRF:    CsrfToken(c),
				Message: text,
			}))
		}
		return a.renderEditor(c, http.StatusUnprocessableEntity, doc, "", text)
	}
	if err != nil {
		return err
	}
	return redirectOrRender(c, editorURL(doc.ID, msg), a.Views.AdminSections(views.SectionsData{
		Doc:  doc,
		CSRF: CsrfToken(c),
	}))
}

func (a *App) handleSectionAdd(c echo.Context) error {
	kind := content.Kind(c.FormValue("kind"))
	at := -1
	if v := c.FormValue("at"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid position")
		}
		at = n
	}
	doc, err := a.editDocument(c, func(d *content.Document) error {
		_, err := d.AddSection(kind, at)
		return err
	})
	return a.sectionResult(c, doc, err, "section added")
}

// handleSectionUpdate decodes a section editor form. Invalid content is not
// saved; the card comes back with the submitted values and the error.
func (a *App) handleSectionUpdate(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	sid := c.Param("sid")

	var draft content.Section
	doc, err := a.editDocument(c, func(d *content.Document) error {
		s, err := d.Section(sid)
		if err != nil {
			return err
		}
		next, err := content.NewContent(s.Kind)
		if err != nil {
			return err
		}
		if err := next.Decode(form); err != nil {
			return err
		}
		draft = s
		draft.Content = next
		if err := next.Validate(); err != nil {
			return err
		}
		return d.UpdateSection(sid, next)
	})

	text := userMessage(err)
	if err != nil && text == "" {
		return err
	}
	data := views.SectionsData{Doc: doc, CSRF: CsrfToken(c)}
	code := http.StatusOK
	if text != "" {
		if draft.ID == "" {
			return a.sectionResult(c, doc, err, "")
		}
		// Swap the rejected content in so the card shows what was typed.
		for i := range data.Doc.Sections {
			if data.Doc.Sections[i].ID == sid {
				data.Doc.Sections[i] = draft
			}
		}
		data.Errors = map[string]string{sid: text}
		code = http.StatusUnprocessableEntity
	}
	if !IsHTMX(c) {
		if code != http.StatusOK {
			return a.renderEditor(c, code, doc, "", text)
		}
		return c.Redirect(http.StatusSeeOther, editorURL(doc.ID, "section saved"))
	}
	card, ok := data.Card(sid)
	if !ok {
		return echo.ErrNotFound
	}
	// The card carries its own error message, so htmx gets a 200 it will swap.
	return Render(c, a.Views.AdminSectionCard(card))
}

func (a *App) handleSectionMove(c echo.Context) error {
	delta, err := strconv.Atoi(c.FormValue("delta"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid delta")
	}
	doc, err := a.editDocument(c, func(d *content.Document) error {
		return d.MoveSection(c.Param("sid"), delta)
	})
	return a.sectionResult(c, doc, err, "section moved")
}

func (a *App) handleSectionReorder(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	ids := form["ids"]
	doc, err := a.editDocument(c, func(d *content.Document) error {
		return d.ReorderSections(ids)
	})
	return a.sectionResult(c, doc, err, "sections reordered")
}

func (a *App) handleSectionDuplicate(c echo.Context) error {
	doc, err := a.editDocument(c, func(d *content.Document) error {
		_, err := d.DuplicateSection(c.Param("sid"))
		return err
	})
	return a.sectionResult(c, doc, err, "section duplicated")
}

func (a *App) handleSectionToggle(c echo.Context) error {
	doc, err := a.editDocument(c, func(d *content.Document) error {
		_, err := d.ToggleSection(c.Param("sid"))
		return err
	})
	return a.sectionResult(c, doc, err, "section visibility changed")
}

func (a *App) handleSectionDelete(c echo.Context) error {
	doc, err := a.editDocument(c, func(d *content.Document) error {
		return d.RemoveSection(c.Param("sid"))
	})
	return a.sectionResult(c, doc, err, "section deleted")
}
