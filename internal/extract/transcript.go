package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"truthline/internal/domain"
)

type TranscriptConfig struct {
	APIBase string // e.g. "https://api.supadata.ai/v1/transcript"
	APIKey  string
	Hosts   []string // video hosts the service handles
	Timeout time.Duration
}

// TranscriptExtractor asks a transcript service for the spoken content of
// a video link.
type TranscriptExtractor struct {
	apiBase string
	apiKey  string
	hosts   []string
	client  *http.Client
}

func NewTranscriptExtractor(cfg TranscriptConfig) *TranscriptExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TranscriptExtractor{
		apiBase: cfg.APIBase,
		apiKey:  cfg.APIKey,
		hosts:   cfg.Hosts,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *TranscriptExtractor) Name() string { return "transcript" }

func (t *TranscriptExtractor) Match(u *url.URL) bool {
	return t.apiBase != "" && hostMatches(u.Hostname(), t.hosts)
}

type transcriptResponse struct {
	Content string `json:"content"`
	Lang    string `json:"lang"`
}

func (t *TranscriptExtractor) Extract(ctx context.Context, u *url.URL) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("transcript: %w", domain.ErrNotConfigured)
	}
	q := url.Values{"url": {u.String()}, "text": {"true"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript: HTTP %d", resp.StatusCode)
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return strings.TrimSpace(tr.Content), nil
}
