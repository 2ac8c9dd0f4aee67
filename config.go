package pagecraft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/pagecraft/store"
)

// Store drivers accepted by SiteConfig.StoreDriver.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// SiteConfig holds all configuration for a pagecraft site. Fields carry env
// tags so ConfigFromEnv can fill them from the environment.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // Site name (default "Blog")
	URL         string `env:"SITE_URL"`         // Canonical URL (default "http://localhost:3000")
	Description string `env:"SITE_DESCRIPTION"` // Site description for RSS and meta tags
	Author      string `env:"SITE_AUTHOR"`      // Author name for JSON-LD

	Addr string `env:"ADDR"` // Listen address (default ":3000")

	StoreDriver   string `env:"STORE_DRIVER"`   // "mongo" (default) or "memory"
	MongoURI      string `env:"MONGO_URI"`      // default "mongodb://localhost:27017"
	MongoDatabase string `env:"MONGO_DATABASE"` // default "pagecraft"

	AnalyticsEnabled       bool   `env:"ANALYTICS_ENABLED" envDefault:"true"`
	AnalyticsDatabasePath  string `env:"ANALYTICS_DB_PATH"`        // default "data/analytics.db"
	AnalyticsRetentionDays int    `env:"ANALYTICS_RETENTION_DAYS"` // default 365

	AdminPassword string `env:"ADMIN_PASSWORD"`       // Required: admin login password
	SessionSecret string `env:"ADMIN_SESSION_SECRET"` // Required: session encryption secret
	CookieSecure  bool   `env:"COOKIE_SECURE"`        // Set true for HTTPS

	CacheTTL time.Duration `env:"CACHE_TTL"` // Published document cache TTL (default 5m)

	MetricsEnabled bool   `env:"METRICS_ENABLED"` // Serve Prometheus metrics on /metrics
	LogLevel       string `env:"LOG_LEVEL"`       // debug, info, warn, error or off (default "info")
}

// ConfigFromEnv reads a SiteConfig from the environment.
func ConfigFromEnv() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StoreDriver == "" {
		c.StoreDriver = DriverMongo
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "pagecraft"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.AnalyticsRetentionDays == 0 {
		c.AnalyticsRetentionDays = 365
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ErrConfig is wrapped by every configuration error returned by Validate.
var ErrConfig = errors.New("invalid configuration")

// Validate reports the first missing or malformed setting.
func (c SiteConfig) Validate() error {
	switch {
	case c.AdminPassword == "":
		return fmt.Errorf("%w: ADMIN_PASSWORD is required", ErrConfig)
	case c.SessionSecret == "":
		return fmt.Errorf("%w: ADMIN_SESSION_SECRET is required", ErrConfig)
	case len(c.SessionSecret) < 32:
		return fmt.Errorf("%w: ADMIN_SESSION_SECRET must be at least 32 bytes", ErrConfig)
	case c.StoreDriver != DriverMongo && c.StoreDriver != DriverMemory:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrConfig, c.StoreDriver)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

func parseLogLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG, nil
	case "info", "":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return log.INFO, fmt.Errorf("unknown LOG_LEVEL %q", s)
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets and uploads
// (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithStore uses s instead of opening the store named by the config.
// The App does not close a store passed this way.
func WithStore(s store.Store) Option {
	return func(a *App) {
		a.Store = s
		a.externalStore = true
	}
}

// WithMiddleware adds Echo middleware after the built-in stack.
func WithMiddleware(m ...echo.MiddlewareFunc) Option {
	return func(a *App) {
		a.middleware = append(a.middleware, m...)
	}
}
