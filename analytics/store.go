package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// timeLayout is how timestamps are stored. It sorts lexically and is
// understood by sqlite's date functions.
const timeLayout = "2006-01-02 15:04:05"

// topN bounds every breakdown list.
const topN = 10

// Store keeps visits in a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the analytics database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			screen_size TEXT NOT NULL DEFAULT '',
			ts TEXT NOT NULL,
			duration_sec INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			ts TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_ts ON visits(ts);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_path ON visits(visitor_id, path);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_ts ON bot_visits(ts);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting returns the value stored under key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// SaveVisit records a page view.
func (s *Store) SaveVisit(ctx context.Context, v *Visit) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visits (visitor_id, session_id, ip_hash, browser, os, device, path, referrer, screen_size, ts, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device, v.Path,
		v.Referrer, v.ScreenSize, v.Timestamp.UTC().Format(timeLayout), v.DurationSec)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// UpdateVisitDuration sets the duration of the latest visit of visitorID to
// path. It is a no-op when there is no such visit.
func (s *Store) UpdateVisitDuration(ctx context.Context, visitorID, path string, durationSec int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE visits SET duration_sec = ?
		WHERE id = (
			SELECT id FROM visits WHERE visitor_id = ? AND path = ?
			ORDER BY ts DESC, id DESC LIMIT 1
		)`, durationSec, visitorID, path)
	if err != nil {
		return fmt.Errorf("update visit duration: %w", err)
	}
	return nil
}

// SaveBotVisit records a crawler page view.
func (s *Store) SaveBotVisit(ctx context.Context, bv *BotVisit) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, ts) VALUES (?, ?, ?, ?, ?)`,
		bv.BotName, bv.IPHash, bv.UserAgent, bv.Path, bv.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert bot visit: %w", err)
	}
	bv.ID, _ = res.LastInsertId()
	return nil
}

// GetStats aggregates the visits of p.
func (s *Store) GetStats(ctx context.Context, p Period) (*Stats, error) {
	from, to := p.From.UTC().Format(timeLayout), p.To.UTC().Format(timeLayout)
	stats := &Stats{Period: p.Name, From: p.From, To: p.To}

	// Every query writes its own fields, so no locking is needed.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var avg float64
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*), COUNT(DISTINCT visitor_id), COALESCE(AVG(NULLIF(duration_sec, 0)), 0)
			FROM visits WHERE ts >= ? AND ts < ?`, from, to).
			Scan(&stats.TotalViews, &stats.UniqueVisitors, &avg)
		if err != nil {
			return fmt.Errorf("count views: %w", err)
		}
		stats.AvgDuration = int(avg)
		return nil
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_visits WHERE ts >= ? AND ts < ?`, from, to).
			Scan(&stats.BotVisits)
		if err != nil {
			return fmt.Errorf("count bot visits: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.dimension(ctx, "visits", "path", from, to)
		if err != nil {
			return fmt.Errorf("top pages: %w", err)
		}
		stats.TopPages = make([]PageStat, len(rows))
		for i, r := range rows {
			stats.TopPages[i] = PageStat{Path: r.Name, Views: r.Count}
		}
		return nil
	})
	for _, d := range []struct {
		table, column string
		dst           *[]DimensionStat
	}{
		{"visits", "browser", &stats.Browsers},
		{"visits", "os", &stats.OS},
		{"visits", "device", &stats.Devices},
		{"visits", "referrer", &stats.Referrers},
		{"bot_visits", "bot_name", &stats.Bots},
	} {
		g.Go(func() error {
			rows, err := s.dimension(ctx, d.table, d.column, from, to)
			if err != nil {
				return fmt.Errorf("%s stats: %w", d.column, err)
			}
			*d.dst = rows
			return nil
		})
	}
	g.Go(func() error {
		views, err := s.buckets(ctx, p.Step, from, to)
		if err != nil {
			return fmt.Errorf("views: %w", err)
		}
		stats.Views = fillBuckets(p, views)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// dimension counts rows of table grouped by column. table and column are
// always constants of this package.
func (s *Store) dimension(ctx context.Context, table, column, from, to string) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %[2]s, COUNT(*) AS n FROM %[1]s
		WHERE ts >= ? AND ts < ? AND %[2]s != ''
		GROUP BY %[2]s ORDER BY n DESC, %[2]s LIMIT ?`, table, column), from, to, topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DimensionStat{}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) buckets(ctx context.Context, step Step, from, to string) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime(?, ts) AS label, COUNT(*) FROM visits
		WHERE ts >= ? AND ts < ?
		GROUP BY label ORDER BY label`, step.strftime(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Label, &b.Views); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RealtimeVisitors counts the distinct visitors of the five minutes before now.
func (s *Store) RealtimeVisitors(ctx context.Context, now time.Time) (int, error) {
	var n int
	cutoff := now.UTC().Add(-5 * time.Minute).Format(timeLayout)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE ts >= ?`, cutoff).Scan(&n)
	return n, err
}

// Cleanup deletes visits and bot visits older than before.
func (s *Store) Cleanup(ctx context.Context, before time.Time) error {
	cutoff := before.UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE ts < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup visits: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bot_visits WHERE ts < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup bot_visits: %w", err)
	}
	return nil
}

// StartCleanupScheduler deletes data older than retentionDays every
// interval until the returned stop function is called.
func (s *Store) StartCleanupScheduler(logger echo.Logger, retentionDays int, interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				before := now.AddDate(0, 0, -retentionDays)
				if err := s.Cleanup(context.Background(), before); err != nil {
					logger.Errorf("analytics cleanup: %v", err)
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
