// Package pagecraft is a blog content-management system built with Go and
// Echo. Blog posts and static pages are composed of reorderable sections
// (hero banners, galleries, FAQs, pricing tables...) edited from an admin UI
// and rendered on the public site. Documents live in MongoDB, or in memory
// for demos and tests.
package pagecraft

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pagecraft/analytics"
	"github.com/eringen/pagecraft/content"
	"github.com/eringen/pagecraft/store"
	"github.com/eringen/pagecraft/views"
)

// App is the central pagecraft application. It wires together the store,
// cache, views, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  store.Store
	Cache  *DocumentCache
	Views  *views.Views

	metrics        *metrics
	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	analytics      *analytics.Handler
	stopCleanup    func()

	// docMu serializes read-modify-write cycles on documents so concurrent
	// section edits do not overwrite each other.
	docMu sync.Mutex

	customRoutes  []func(*App)
	middleware    []echo.MiddlewareFunc
	viewOptions   []views.Option
	staticDir     string
	externalStore bool
	initialized   bool
}

// New creates a new pagecraft App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true

	a := &App{
		Config:    cfg,
		Echo:      e,
		metrics:   newMetrics(),
		staticDir: "public",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithViewOptions passes options to views.New, typically templates for
// custom section kinds.
func WithViewOptions(opts ...views.Option) Option {
	return func(a *App) {
		a.viewOptions = append(a.viewOptions, opts...)
	}
}

// Init validates the configuration, opens the stores and sets up
// middleware and routes. Start calls it; tests call it directly and drive
// a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("pagecraft: %w", err)
	}

	lvl, _ := parseLogLevel(a.Config.LogLevel)
	a.Echo.Logger.SetLevel(lvl)

	v, err := views.New(content.Specs(), a.viewOptions...)
	if err != nil {
		return fmt.Errorf("pagecraft: init views: %w", err)
	}
	a.Views = v

	if a.Store == nil {
		s, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("pagecraft: init store: %w", err)
		}
		a.Store = s
	}

	a.Cache = NewDocumentCache(a.Store, a.Config.CacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Config.AnalyticsEnabled {
		if err := a.initAnalytics(ctx); err != nil {
			a.Close()
			return fmt.Errorf("pagecraft: init analytics: %w", err)
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	if a.Config.StoreDriver == DriverMemory {
		a.Echo.Logger.Warn("using the in-memory store: documents are lost on restart")
	}
	return OpenStore(ctx, a.Config)
}

// OpenStore opens the document store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg SiteConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case DriverMemory:
		s, err := store.NewMemoryStore()
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo, "":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		uri, db := cfg.MongoURI, cfg.MongoDatabase
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		if db == "" {
			db = "pagecraft"
		}
		s, err := store.OpenMongo(ctx, uri, db)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrConfig, cfg.StoreDriver)
}

func (a *App) initAnalytics(ctx context.Context) error {
	s, err := analytics.NewStore(a.Config.AnalyticsDatabasePath)
	if err != nil {
		return err
	}
	a.analyticsStore = s
	hasher, err := analytics.LoadHasher(ctx, s)
	if err != nil {
		return err
	}
	host := ""
	if u, err := url.Parse(a.Config.URL); err == nil {
		host = u.Hostname()
	}
	a.analytics = analytics.NewHandler(s, hasher, host)
	a.stopCleanup = s.StartCleanupScheduler(a.Echo.Logger, a.Config.AnalyticsRetentionDays, 24*time.Hour)
	return nil
}

// Start initializes the app and serves HTTP until the server is closed.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Echo.Logger.Infof("pagecraft listening on %s", a.Config.Addr)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down gracefully when ctx is done.
func (a *App) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- a.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("pagecraft: shutdown: %w", err)
	}
	return <-errc
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets first; everything else under /public comes from the
	// static directory, including uploads.
	assets, _ := fs.Sub(Assets, "assets")
	assetHandler := echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets))))
	for _, name := range []string{"pagecraft.css", "editor.js", "analytics.js"} {
		e.GET("/public/"+name, assetHandler)
	}
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.GET("/blog/:slug/", a.handlePost)
	e.GET("/:slug/", a.handlePage)

	if a.Config.MetricsEnabled {
		e.GET("/metrics", a.metrics.handler())
	}

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	admin := e.Group("/admin", requireAdmin)
	a.registerDocumentRoutes(admin)
	a.registerSectionRoutes(admin)
	a.registerMediaRoutes(admin)

	admin.GET("/analytics/", a.handleAnalytics)
	if a.analytics != nil {
		a.analytics.RegisterRoutes(e.Group(""), admin)
	}
}

// Close releases the stores. Call this when the app is shutting down.
func (a *App) Close() error {
	var errs []error
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil && !a.externalStore {
		errs = append(errs, a.Store.Close())
	}
	if a.analyticsStore != nil {
		errs = append(errs, a.analyticsStore.Close())
	}
	return errors.Join(errs...)
}

// site returns the site-wide view settings. Nav is filled by siteWithNav.
func (a *App) site() views.Site {
	return views.Site{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
		Analytics:   a.analytics != nil,
	}
}

func (a *App) siteWithNav(ctx context.Context) (views.Site, error) {
	s := a.site()
	nav, err := a.Cache.Nav(ctx)
	if err != nil {
		return s, err
	}
	s.Nav = nav
	return s, nil
}
