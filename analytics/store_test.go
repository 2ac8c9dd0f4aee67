package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	v, err := s.GetSetting(ctx, "missing")
	if err != nil || v != "" {
		t.Fatalf("GetSetting(missing) = %q, %v", v, err)
	}
	for _, want := range []string{"one", "two"} {
		if err := s.SetSetting(ctx, "k", want); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("GetSetting = %q, want %q", got, want)
		}
	}
}

func TestLoadHasherPersistsSalt(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	first, err := LoadHasher(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	second, err := LoadHasher(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if first.HashIP("203.0.113.5") != second.HashIP("203.0.113.5") {
		t.Error("salt should be reused across loads")
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	visits := []Visit{
		{VisitorID: "a", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/", Referrer: "Direct", Timestamp: now.Add(-time.Hour)},
		{VisitorID: "a", Browser: "Chrome", OS: "Linux", Device: "Desktop", Path: "/blog/hello/", Referrer: "Direct", Timestamp: now.Add(-50 * time.Minute)},
		{VisitorID: "b", Browser: "Firefox", OS: "Windows", Device: "Desktop", Path: "/", Referrer: "Google", Timestamp: now.AddDate(0, 0, -2)},
		{VisitorID: "c", Browser: "Safari", OS: "iOS", Device: "Mobile", Path: "/about/", Referrer: "Google", Timestamp: now.AddDate(0, 0, -20)},
	}
	for i := range visits {
		visits[i].SessionID = "s"
		visits[i].IPHash = "h"
		if err := s.SaveVisit(ctx, &visits[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SaveBotVisit(ctx, &BotVisit{BotName: "Googlebot", IPHash: "h", UserAgent: "googlebot", Path: "/", Timestamp: now}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateVisitDuration(ctx, "a", "/", 30); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStats(ctx, ParsePeriod("week", now))
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalViews != 3 || stats.UniqueVisitors != 2 {
		t.Errorf("views/visitors = %d/%d, want 3/2", stats.TotalViews, stats.UniqueVisitors)
	}
	if stats.AvgDuration != 30 {
		t.Errorf("avg duration = %d, want 30", stats.AvgDuration)
	}
	if stats.BotVisits != 1 {
		t.Errorf("bot visits = %d", stats.BotVisits)
	}
	if diff := cmp.Diff([]PageStat{{"/", 2}, {"/blog/hello/", 1}}, stats.TopPages); diff != "" {
		t.Errorf("top pages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]DimensionStat{{"Chrome", 2}, {"Firefox", 1}}, stats.Browsers); diff != "" {
		t.Errorf("browsers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]DimensionStat{{"Direct", 2}, {"Google", 1}}, stats.Referrers); diff != "" {
		t.Errorf("referrers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]DimensionStat{{"Googlebot", 1}}, stats.Bots); diff != "" {
		t.Errorf("bots (-want +got):\n%s", diff)
	}
	if len(stats.Views) != 7 {
		t.Fatalf("views has %d buckets", len(stats.Views))
	}
	if got := stats.Views[6]; got != (Bucket{"2024-03-15", 2}) {
		t.Errorf("last bucket = %+v", got)
	}
	if got := stats.Views[4]; got != (Bucket{"2024-03-13", 1}) {
		t.Errorf("bucket two days ago = %+v", got)
	}

	month, err := s.GetStats(ctx, ParsePeriod("month", now))
	if err != nil {
		t.Fatal(err)
	}
	if month.TotalViews != 4 || month.UniqueVisitors != 3 {
		t.Errorf("month views/visitors = %d/%d, want 4/3", month.TotalViews, month.UniqueVisitors)
	}

	today, err := s.GetStats(ctx, ParsePeriod("today", now))
	if err != nil {
		t.Fatal(err)
	}
	if today.TotalViews != 2 {
		t.Errorf("today views = %d, want 2", today.TotalViews)
	}
	if got := today.Views[len(today.Views)-2]; got != (Bucket{"2024-03-15 11:00", 2}) {
		t.Errorf("hour bucket = %+v", got)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	s := setupTestStore(t)
	stats, err := s.GetStats(context.Background(), ParsePeriod("year", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalViews != 0 || len(stats.TopPages) != 0 || stats.Browsers == nil {
		t.Errorf("empty stats = %+v", stats)
	}
	if len(stats.Views) != 12 {
		t.Errorf("views has %d buckets, want 12", len(stats.Views))
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{now.AddDate(-2, 0, 0), now} {
		v := &Visit{VisitorID: "v", SessionID: "s", IPHash: "h", Browser: "b", OS: "o", Device: "d", Path: "/", Timestamp: ts}
		if err := s.SaveVisit(ctx, v); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveBotVisit(ctx, &BotVisit{BotName: "x", IPHash: "h", UserAgent: "x", Path: "/", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Cleanup(ctx, now.AddDate(-1, 0, 0)); err != nil {
		t.Fatal(err)
	}

	var visits, bots int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM visits`).Scan(&visits); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM bot_visits`).Scan(&bots); err != nil {
		t.Fatal(err)
	}
	if visits != 1 || bots != 1 {
		t.Errorf("after cleanup visits=%d bots=%d, want 1/1", visits, bots)
	}
}

func TestRealtimeVisitors(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{now.Add(-time.Minute), now.Add(-2 * time.Minute), now.Add(-time.Hour)} {
		v := &Visit{VisitorID: string(rune('a' + i)), SessionID: "s", IPHash: "h", Browser: "b", OS: "o", Device: "d", Path: "/", Timestamp: ts}
		if err := s.SaveVisit(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.RealtimeVisitors(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("realtime = %d, want 2", n)
	}
}
