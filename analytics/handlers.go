package analytics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Handler serves the collect endpoint and the admin stats API.
type Handler struct {
	store    *Store
	hasher   Hasher
	siteHost string
	limit    echo.MiddlewareFunc
	now      func() time.Time
}

// NewHandler returns a Handler. Referrers from siteHost are treated as
// internal navigation. The collect endpoint allows bursts of 60 requests per
// IP, refilled at one per second.
func NewHandler(store *Store, hasher Hasher, siteHost string) *Handler {
	return &Handler{
		store:    store,
		hasher:   hasher,
		siteHost: siteHost,
		limit:    collectRateLimit(),
		now:      time.Now,
	}
}

func collectRateLimit() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      1,
			Burst:     60,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.NoContent(http.StatusTooManyRequests)
		},
	})
}

// CollectRequest is the body sent by the tracking script. A request with a
// positive DurationSec is the unload beacon of an earlier page view.
type CollectRequest struct {
	Path        string `json:"path"`
	Referrer    string `json:"referrer"`
	ScreenSize  string `json:"screen_size"`
	UserAgent   string `json:"user_agent"`
	DurationSec int    `json:"duration_sec"`
}

const (
	maxPathLen       = 2048
	maxReferrerLen   = 2048
	maxScreenSizeLen = 32
	maxUserAgentLen  = 512
	maxDurationSec   = 86400
)

var errInvalidCollect = errors.New("invalid collect request")

func (req *CollectRequest) validate() error {
	switch {
	case req.Path == "" || req.Path[0] != '/':
		return fmt.Errorf("%w: path must be absolute", errInvalidCollect)
	case len(req.Path) > maxPathLen:
		return fmt.Errorf("%w: path exceeds %d bytes", errInvalidCollect, maxPathLen)
	case len(req.Referrer) > maxReferrerLen:
		return fmt.Errorf("%w: referrer exceeds %d bytes", errInvalidCollect, maxReferrerLen)
	case len(req.ScreenSize) > maxScreenSizeLen:
		return fmt.Errorf("%w: screen_size exceeds %d bytes", errInvalidCollect, maxScreenSizeLen)
	case len(req.UserAgent) > maxUserAgentLen:
		return fmt.Errorf("%w: user_agent exceeds %d bytes", errInvalidCollect, maxUserAgentLen)
	case req.DurationSec < 0 || req.DurationSec > maxDurationSec:
		return fmt.Errorf("%w: duration_sec out of range", errInvalidCollect)
	}
	return nil
}

// Collect records a page view sent by the tracking script.
func (h *Handler) Collect(c echo.Context) error {
	ip := c.RealIP()
	if c.Request().Header.Get("DNT") == "1" || c.Request().Header.Get("Sec-GPC") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	if err := req.validate(); err != nil {
		c.Logger().Debugf("analytics collect: %v", err)
		return c.String(http.StatusBadRequest, "Invalid request")
	}

	ctx := c.Request().Context()
	now := h.now().UTC()
	ua := req.UserAgent
	if ua == "" {
		ua = c.Request().UserAgent()
	}

	if IsBot(ua) {
		bv := &BotVisit{
			BotName:   BotName(ua),
			IPHash:    h.hasher.HashIP(ip),
			UserAgent: ua,
			Path:      req.Path,
			Timestamp: now,
		}
		if err := h.store.SaveBotVisit(ctx, bv); err != nil {
			c.Logger().Errorf("save bot visit: %v", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	visitorID := h.hasher.VisitorID(ip, ua)
	if req.DurationSec > 0 {
		if err := h.store.UpdateVisitDuration(ctx, visitorID, req.Path, req.DurationSec); err != nil {
			c.Logger().Errorf("update visit duration: %v", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	browser, os, device := ParseUserAgent(ua)
	v := &Visit{
		VisitorID:  visitorID,
		SessionID:  h.hasher.SessionID(visitorID, now),
		IPHash:     h.hasher.HashIP(ip),
		Browser:    browser,
		OS:         os,
		Device:     device,
		Path:       req.Path,
		Referrer:   CleanReferrer(req.Referrer, h.siteHost),
		ScreenSize: req.ScreenSize,
		Timestamp:  now,
	}
	if err := h.store.SaveVisit(ctx, v); err != nil {
		c.Logger().Errorf("save visit: %v", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	Stats    *Stats `json:"stats"`
	Realtime int    `json:"realtime_visitors"`
}

// Report loads the stats of the named period along with the realtime
// visitor count.
func (h *Handler) Report(c echo.Context, period string) (StatsResponse, error) {
	ctx := c.Request().Context()
	now := h.now()
	stats, err := h.store.GetStats(ctx, ParsePeriod(period, now))
	if err != nil {
		return StatsResponse{}, err
	}
	realtime, err := h.store.RealtimeVisitors(ctx, now)
	if err != nil {
		c.Logger().Warnf("realtime visitors: %v", err)
	}
	return StatsResponse{Stats: stats, Realtime: realtime}, nil
}

// Stats returns the stats of ?period= as JSON.
func (h *Handler) Stats(c echo.Context) error {
	resp, err := h.Report(c, c.QueryParam("period"))
	if err != nil {
		c.Logger().Errorf("analytics stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, resp)
}

// RegisterRoutes mounts the collect endpoint on public and the stats API on
// admin, which must already enforce authentication.
func (h *Handler) RegisterRoutes(public *echo.Group, admin *echo.Group) {
	public.POST("/api/analytics/collect", h.Collect, h.limit)
	admin.GET("/analytics/api/stats", h.Stats)
}
