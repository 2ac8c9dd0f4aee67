package pagecraft

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
	"github.com/eringen/pagecraft/views"
)

const (
	maxImageWidth = 1200
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

var errInvalidImage = errors.New("invalid image")

// processImage decodes an image from src, shrinks it to maxImageWidth and
// re-encodes it as JPEG.
func processImage(src io.Reader, originalName string) (store.Media, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return store.Media{}, nil, fmt.Errorf("%w: %v", errInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := max(1, h*maxImageWidth/w)
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return store.Media{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return store.Media{
		Filename:     mediaFilename(originalName),
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         int64(buf.Len()),
		UploadedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}, buf.Bytes(), nil
}

// mediaFilename turns an uploaded name into a URL-safe .jpg filename.
func mediaFilename(name string) string {
	base := content.Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}

// uniqueFilename appends a counter until the name is free on disk and in
// the store.
func (a *App) uniqueFilename(ctx context.Context, name string) (string, error) {
	existing, err := a.Store.ListMedia(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, m := range existing {
		taken[m.Filename] = true
	}
	dir := a.uploadsDir()
	base := strings.TrimSuffix(name, ".jpg")
	candidate := name
	for i := 2; ; i++ {
		_, statErr := os.Stat(filepath.Join(dir, candidate))
		if !taken[candidate] && errors.Is(statErr, os.ErrNotExist) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, i)
	}
}

func (a *App) uploadsDir() string {
	return filepath.Join(a.staticDir, uploadsSubdir)
}

func (a *App) registerMediaRoutes(g *echo.Group) {
	g.GET("/media/", a.handleMediaList)
	g.POST("/media/", a.handleMediaUpload)
	g.POST("/media/:filename/delete/", a.handleMediaDelete)
	g.DELETE("/media/:filename/", a.handleMediaDelete)
}

func (a *App) handleMediaList(c echo.Context) error {
	return a.renderMedia(c, http.StatusOK, "")
}

func (a *App) handleMediaUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return a.renderMedia(c, http.StatusBadRequest, "No image file provided.")
	}
	if file.Size > maxUploadSize {
		return a.renderMedia(c, http.StatusBadRequest, "File too large (max 10MB).")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	m, data, err := processImage(src, file.Filename)
	if errors.Is(err, errInvalidImage) {
		return a.renderMedia(c, http.StatusBadRequest, "Unsupported or corrupt image.")
	}
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	m.Filename, err = a.uniqueFilename(ctx, m.Filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.uploadsDir(), 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(a.uploadsDir(), m.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := a.Store.SaveMedia(ctx, m); err != nil {
		_ = os.Remove(path)
		return err
	}
	a.metrics.uploads.Inc()
	c.Logger().Infof("uploaded %s (%dx%d, %d bytes)", m.Filename, m.Width, m.Height, m.Size)
	return a.renderMedia(c, http.StatusOK, "")
}

func (a *App) handleMediaDelete(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" || strings.HasPrefix(filename, ".") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}
	if err := os.Remove(filepath.Join(a.uploadsDir(), filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	err := a.Store.DeleteMedia(c.Request().Context(), filename)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return a.renderMedia(c, http.StatusOK, "")
}

// renderMedia shows the library page, or only the grid for htmx requests.
func (a *App) renderMedia(c echo.Context, code int, errMsg string) error {
	items, err := a.Store.ListMedia(c.Request().Context())
	if err != nil {
		return err
	}
	data := views.MediaData{Site: a.site(), Media: items, Error: errMsg, CSRF: CsrfToken(c)}
	if IsHTMX(c) {
		// htmx only swaps 2xx responses; the error is shown inside the grid.
		return Render(c, a.Views.AdminMediaGrid(data))
	}
	if code == http.StatusOK && c.Request().Method != http.MethodGet {
		return c.Redirect(http.StatusSeeOther, "/admin/media/")
	}
	return RenderStatus(c, code, a.Views.AdminMedia(data))
}
