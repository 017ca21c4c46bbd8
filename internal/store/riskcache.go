// Package store keeps URL risk verdicts between requests so repeated
// forwards of the same link do not spend scanner quota.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"truthline/internal/domain"
)

// RiskCache is a SQLite table of url → narrative with an expiry.
type RiskCache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func OpenRiskCache(dbPath string, ttl time.Duration, logger *slog.Logger) (*RiskCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &RiskCache{db: db, ttl: ttl, now: time.Now, logger: logger}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return c, nil
}

func (c *RiskCache) migrate() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS url_risk (
		url        TEXT PRIMARY KEY,
		narrative  TEXT NOT NULL,
		checked_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_url_risk_checked ON url_risk(checked_at);
	`)
	return err
}

// Get returns a cached narrative younger than the TTL.
func (c *RiskCache) Get(ctx context.Context, url string) (string, bool, error) {
	var narrative string
	var checkedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT narrative, checked_at FROM url_risk WHERE url = ?`, url,
	).Scan(&narrative, &checkedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("risk cache get: %w", err)
	}
	if c.now().Sub(time.Unix(checkedAt, 0)) > c.ttl {
		return "", false, nil
	}
	return narrative, true, nil
}

func (c *RiskCache) Put(ctx context.Context, url, narrative string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO url_risk (url, narrative, checked_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET narrative = excluded.narrative, checked_at = excluded.checked_at`,
		url, narrative, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("risk cache put: %w", err)
	}
	return nil
}

// Prune deletes expired rows and reports how many were removed.
func (c *RiskCache) Prune(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.ttl).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM url_risk WHERE checked_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("risk cache prune: %w", err)
	}
	return res.RowsAffected()
}

func (c *RiskCache) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *RiskCache) Close() error { return c.db.Close() }

// CachedScorer serves risk lookups from the cache and stores fresh ones.
// Only successful lookups are cached.
type CachedScorer struct {
	next  domain.RiskScorer
	cache *RiskCache
}

func NewCachedScorer(next domain.RiskScorer, cache *RiskCache) *CachedScorer {
	return &CachedScorer{next: next, cache: cache}
}

func (s *CachedScorer) Score(ctx context.Context, url string) (string, error) {
	if narrative, ok, err := s.cache.Get(ctx, url); err != nil {
		s.cache.logger.Warn("risk cache read failed", "url", url, "err", err)
	} else if ok {
		return narrative, nil
	}

	narrative, err := s.next.Score(ctx, url)
	if err != nil {
		return "", err
	}
	if err := s.cache.Put(ctx, url, narrative); err != nil {
		s.cache.logger.Warn("risk cache write failed", "url", url, "err", err)
	}
	return narrative, nil
}
