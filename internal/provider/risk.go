package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"truthline/internal/domain"
)

const riskAPIBase = "https://ipqualityscore.com/api/json/url"

type RiskConfig struct {
	APIBase    string
	APIKey     string
	Strictness int // 0 (lenient) .. 2 (strict)
	Timeout    time.Duration
	Logger     *slog.Logger
}

// RiskProvider scores URLs with the IPQualityScore malicious URL scanner.
type RiskProvider struct {
	apiBase    string
	apiKey     string
	strictness int
	client     *http.Client
	logger     *slog.Logger
}

func NewRiskProvider(cfg RiskConfig) *RiskProvider {
	if cfg.APIBase == "" {
		cfg.APIBase = riskAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RiskProvider{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiKey:     cfg.APIKey,
		strictness: cfg.Strictness,
		client:     SharedHTTPClient(cfg.Timeout),
		logger:     cfg.Logger,
	}
}

type riskResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Domain     string `json:"domain"`
	RiskScore  int    `json:"risk_score"`
	Unsafe     bool   `json:"unsafe"`
	Phishing   bool   `json:"phishing"`
	Malware    bool   `json:"malware"`
	Suspicious bool   `json:"suspicious"`
	Spamming   bool   `json:"spamming"`
	Parking    bool   `json:"parking"`
	Adult      bool   `json:"adult"`
}

// Score returns a one-line narrative such as
// "Risk score 85/100 for example.com (phishing, suspicious)".
func (r *RiskProvider) Score(ctx context.Context, rawURL string) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("risk: %w", domain.ErrNotConfigured)
	}
	endpoint := fmt.Sprintf("%s/%s/%s?strictness=%s",
		r.apiBase, url.PathEscape(r.apiKey), url.PathEscape(rawURL), strconv.Itoa(r.strictness))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("risk request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", newAPIError("risk", resp.StatusCode, resp.Body)
	}

	var rr riskResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", fmt.Errorf("decode risk response: %w", err)
	}
	if !rr.Success {
		return "", fmt.Errorf("risk lookup rejected: %s", rr.Message)
	}
	return rr.narrative(rawURL), nil
}

func (rr riskResponse) narrative(rawURL string) string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{rr.Phishing, "phishing"},
		{rr.Malware, "malware"},
		{rr.Suspicious, "suspicious"},
		{rr.Spamming, "spam"},
		{rr.Parking, "parked domain"},
		{rr.Adult, "adult content"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	host := rr.Domain
	if host == "" {
		host = rawURL
	}
	summary := "no threats flagged"
	if len(flags) > 0 {
		summary = strings.Join(flags, ", ")
	}
	if rr.Unsafe && len(flags) == 0 {
		summary = "marked unsafe"
	}
	return fmt.Sprintf("Risk score %d/100 for %s (%s)", rr.RiskScore, host, summary)
}
