package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *RiskCache {
	t.Helper()
	c, err := OpenRiskCache(filepath.Join(t.TempDir(), "risk.db"), ttl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRiskCache_PutGet(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "https://example.com/scam")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "https://example.com/scam", "Risk score 85/100"))
	got, ok, err := c.Get(ctx, "https://example.com/scam")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Risk score 85/100", got)

	require.NoError(t, c.Put(ctx, "https://example.com/scam", "Risk score 90/100"))
	got, _, _ = c.Get(ctx, "https://example.com/scam")
	assert.Equal(t, "Risk score 90/100", got)
}

func TestRiskCache_ExpiryAndPrune(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()
	base := time.Now()
	c.now = func() time.Time { return base }

	require.NoError(t, c.Put(ctx, "https://old.example", "stale"))
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.NoError(t, c.Put(ctx, "https://new.example", "fresh"))

	_, ok, err := c.Get(ctx, "https://old.example")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must not be served")

	n, err := c.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, ok, _ := c.Get(ctx, "https://new.example")
	assert.True(t, ok)
	assert.Equal(t, "fresh", got)
}

type countingScorer struct {
	calls int
	err   error
}

func (s *countingScorer) Score(ctx context.Context, url string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "Risk score 10/100 for " + url, nil
}

func TestCachedScorer(t *testing.T) {
	c := openTestCache(t, time.Hour)
	next := &countingScorer{}
	s := NewCachedScorer(next, c)
	ctx := context.Background()

	first, err := s.Score(ctx, "https://a.example")
	require.NoError(t, err)
	second, err := s.Score(ctx, "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
}

func TestCachedScorer_ErrorsNotCached(t *testing.T) {
	c := openTestCache(t, time.Hour)
	next := &countingScorer{err: errors.New("quota")}
	s := NewCachedScorer(next, c)
	ctx := context.Background()

	_, err := s.Score(ctx, "https://a.example")
	assert.Error(t, err)
	_, err = s.Score(ctx, "https://a.example")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}
