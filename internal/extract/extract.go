// Package extract fetches readable content behind a URL so the reasoning
// step sees what a link says, not just where it points.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"truthline/internal/provider"
)

const userAgent = "Mozilla/5.0 (compatible; truthline/1.0; +https://github.com/truthline)"

// Extractor is one content source in the chain.
type Extractor interface {
	Name() string
	// Match reports whether the extractor handles u at all.
	Match(u *url.URL) bool
	Extract(ctx context.Context, u *url.URL) (string, error)
}

type ChainConfig struct {
	Extractors []Extractor
	MaxChars   int
	Logger     *slog.Logger
}

// Chain tries matching extractors in order and returns the first
// non-empty result. It implements domain.ContentExtractor.
type Chain struct {
	extractors []Extractor
	maxChars   int
	logger     *slog.Logger
}

func NewChain(cfg ChainConfig) *Chain {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 6000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chain{extractors: cfg.Extractors, maxChars: cfg.MaxChars, logger: cfg.Logger}
}

func (c *Chain) Extract(ctx context.Context, rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}

	var matched []Extractor
	for _, e := range c.extractors {
		if e.Match(u) {
			matched = append(matched, e)
		}
	}

	text, err := provider.TryInOrder(matched, Extractor.Name, c.logger, func(e Extractor) (string, error) {
		out, err := e.Extract(ctx, u)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", fmt.Errorf("%s: no content", e.Name())
		}
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", u.Host, err)
	}
	return clip(text, c.maxChars), nil
}

// parseHTTPURL rejects anything but http(s) so file:// and friends never
// reach a fetcher.
func parseHTTPURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http/https allowed)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n... (truncated)"
}

func hostMatches(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "www."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
