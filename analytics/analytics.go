// Package analytics provides privacy-first page view counts for the public
// site. IP addresses are never stored: visits carry salted hashes only, and
// the salt is generated per installation.
package analytics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const saltKey = "hash_salt"

// Hasher derives anonymous identifiers from request data.
type Hasher struct {
	salt string
}

// NewHasher returns a Hasher using salt.
func NewHasher(salt string) Hasher {
	return Hasher{salt: salt}
}

// LoadHasher reads the installation salt from s, generating and storing one
// on first use.
func LoadHasher(ctx context.Context, s *Store) (Hasher, error) {
	salt, err := s.GetSetting(ctx, saltKey)
	if err != nil {
		return Hasher{}, fmt.Errorf("read hash salt: %w", err)
	}
	if salt == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return Hasher{}, fmt.Errorf("generate salt: %w", err)
		}
		salt = hex.EncodeToString(b)
		if err := s.SetSetting(ctx, saltKey, salt); err != nil {
			return Hasher{}, fmt.Errorf("store hash salt: %w", err)
		}
	}
	return NewHasher(salt), nil
}

func (h Hasher) sum(parts ...string) string {
	sum := sha256.Sum256([]byte(h.salt + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// HashIP returns the salted hash of ip.
func (h Hasher) HashIP(ip string) string {
	return h.sum(ip)
}

// VisitorID identifies a visitor by IP and User-Agent without storing either.
func (h Hasher) VisitorID(ip, userAgent string) string {
	return h.sum(ip, userAgent)
}

// SessionID groups the visits of one visitor on one UTC day.
func (h Hasher) SessionID(visitorID string, t time.Time) string {
	return h.sum(visitorID, t.UTC().Format("2006-01-02"))
}

// Visit is a single page view.
type Visit struct {
	ID          int64     `json:"-"`
	VisitorID   string    `json:"visitor_id"`
	SessionID   string    `json:"session_id"`
	IPHash      string    `json:"-"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Device      string    `json:"device"`
	Path        string    `json:"path"`
	Referrer    string    `json:"referrer"`
	ScreenSize  string    `json:"screen_size"` // e.g. "1920x1080"
	Timestamp   time.Time `json:"timestamp"`
	DurationSec int       `json:"duration_sec"`
}

// BotVisit is a page view by a crawler.
type BotVisit struct {
	ID        int64     `json:"-"`
	BotName   string    `json:"bot_name"`
	IPHash    string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the aggregate of a period.
type Stats struct {
	Period         string          `json:"period"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	UniqueVisitors int             `json:"unique_visitors"`
	TotalViews     int             `json:"total_views"`
	AvgDuration    int             `json:"avg_duration_sec"`
	BotVisits      int             `json:"bot_visits"`
	TopPages       []PageStat      `json:"top_pages"`
	Browsers       []DimensionStat `json:"browsers"`
	OS             []DimensionStat `json:"os"`
	Devices        []DimensionStat `json:"devices"`
	Referrers      []DimensionStat `json:"referrers"`
	Bots           []DimensionStat `json:"bots"`
	Views          []Bucket        `json:"views"`
}

// PageStat counts the views of a path.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DimensionStat is one row of a breakdown (browser, OS, referrer...).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Bucket counts the views of one hour, day or month.
type Bucket struct {
	Label string `json:"label"`
	Views int    `json:"views"`
}

// Period is a reporting window.
type Period struct {
	Name string
	From time.Time
	To   time.Time
	// Step is the bucket width of the views chart.
	Step Step
}

// Step is the granularity of Stats.Views.
type Step int

const (
	Hourly Step = iota
	Daily
	Monthly
)

// Periods lists the accepted period names.
var Periods = []string{"today", "week", "month", "year"}

// ParsePeriod resolves a period name relative to now. Unknown names fall
// back to "week".
func ParsePeriod(name string, now time.Time) Period {
	now = now.UTC()
	day := now.Truncate(24 * time.Hour)
	switch name {
	case "today":
		hour := now.Truncate(time.Hour)
		return Period{Name: name, From: hour.Add(-23 * time.Hour), To: hour.Add(time.Hour), Step: Hourly}
	case "month":
		return Period{Name: name, From: day.AddDate(0, 0, -29), To: day.AddDate(0, 0, 1), Step: Daily}
	case "year":
		month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Name: name, From: month.AddDate(0, -11, 0), To: month.AddDate(0, 1, 0), Step: Monthly}
	default:
		return Period{Name: "week", From: day.AddDate(0, 0, -6), To: day.AddDate(0, 0, 1), Step: Daily}
	}
}

// Labels returns every bucket label of p in order.
func (p Period) Labels() []string {
	var labels []string
	for t := p.From; t.Before(p.To); t = p.Step.next(t) {
		labels = append(labels, p.Step.label(t))
	}
	return labels
}

func (s Step) next(t time.Time) time.Time {
	switch s {
	case Hourly:
		return t.Add(time.Hour)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func (s Step) label(t time.Time) string {
	switch s {
	case Hourly:
		return t.Format("2006-01-02 15:00")
	case Monthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// sqlite strftime format producing the same labels as Step.label.
func (s Step) strftime() string {
	switch s {
	case Hourly:
		return "%Y-%m-%d %H:00"
	case Monthly:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// fillBuckets returns a bucket for every label of p, zero where sparse has
// no row.
func fillBuckets(p Period, sparse []Bucket) []Bucket {
	counts := make(map[string]int, len(sparse))
	for _, b := range sparse {
		counts[b.Label] = b.Views
	}
	labels := p.Labels()
	out := make([]Bucket, len(labels))
	for i, l := range labels {
		out[i] = Bucket{Label: l, Views: counts[l]}
	}
	return out
}

// ParseUserAgent extracts browser, OS and device class from a User-Agent.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)

	// Specific engines first: Edge and Opera also claim Chrome and Safari.
	switch {
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr/"):
		browser = "Opera"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	default:
		browser = "Other"
	}

	// Android before Linux.
	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		os = "iOS"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	// iPad UAs contain "mobile".
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		device = "Tablet"
	case strings.Contains(ua, "mobile"):
		device = "Mobile"
	default:
		device = "Desktop"
	}
	return browser, os, device
}

// knownBots maps User-Agent fragments to display names, most specific first.
var knownBots = []struct{ pattern, name string }{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"duckduckbot", "DuckDuckBot"},
	{"yandex", "Yandex"},
	{"baidu", "Baidu"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedIn"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"mj12bot", "Majestic"},
	{"dotbot", "Moz"},
	{"gptbot", "GPTBot"},
	{"slurp", "Yahoo Slurp"},
	{"crawler", "Generic Crawler"},
	{"spider", "Generic Spider"},
}

var botMarkers = []string{"bot", "crawl", "spider", "slurp", "scrape", "facebookexternalhit", "yandex", "baidu"}

// IsBot reports whether ua looks like a crawler.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// BotName returns the display name of the crawler identified by ua.
func BotName(ua string) string {
	ua = strings.ToLower(ua)
	for _, b := range knownBots {
		if strings.Contains(ua, b.pattern) {
			return b.name
		}
	}
	if strings.Contains(ua, "bot") {
		return "Other Bot"
	}
	return "Unknown"
}

var referrerHost = regexp.MustCompile(`^https?://(?:www\.)?([^/:?#]+)`)

var searchEngines = []struct{ fragment, name string }{
	{"google.", "Google"},
	{"bing.", "Bing"},
	{"duckduckgo.", "DuckDuckGo"},
	{"yahoo.", "Yahoo"},
	{"github.", "GitHub"},
}

// CleanReferrer reduces a referrer URL to a source name: a well-known site,
// a bare host, "Direct" or "Other". Referrers from siteHost count as
// "Direct" so internal navigation does not show up as a source.
func CleanReferrer(ref, siteHost string) string {
	if ref == "" {
		return "Direct"
	}
	m := referrerHost.FindStringSubmatch(strings.ToLower(ref))
	if m == nil {
		return "Other"
	}
	host := m[1]
	if siteHost != "" && host == strings.TrimPrefix(strings.ToLower(siteHost), "www.") {
		return "Direct"
	}
	for _, se := range searchEngines {
		if strings.Contains(host, se.fragment) {
			return se.name
		}
	}
	return host
}
