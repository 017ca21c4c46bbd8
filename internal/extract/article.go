package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/go-shiori/go-readability"
)

const articleMaxBytes = 2 << 20

type ArticleConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// ArticleExtractor downloads a page and keeps its main article as markdown.
type ArticleExtractor struct {
	client *http.Client
	logger *slog.Logger
}

func NewArticleExtractor(cfg ArticleConfig) *ArticleExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ArticleExtractor{client: &http.Client{Timeout: cfg.Timeout}, logger: cfg.Logger}
}

func (a *ArticleExtractor) Name() string { return "article" }

func (a *ArticleExtractor) Match(u *url.URL) bool { return true }

func (a *ArticleExtractor) Extract(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, u.Host)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, articleMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if article.Content != "" {
		md, err := htmltomarkdown.ConvertString(article.Content, converter.WithDomain(u.Scheme+"://"+u.Host))
		if err != nil {
			a.logger.Debug("markdown conversion failed, using plain text", "url", u.String(), "err", err)
		} else if md = strings.TrimSpace(md); md != "" {
			text = md
		}
	}
	if text == "" {
		return "", nil
	}
	if title := strings.TrimSpace(article.Title); title != "" {
		text = "Title: " + title + "\n\n" + text
	}
	return text, nil
}
