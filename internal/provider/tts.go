package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"truthline/internal/domain"
)

const (
	elevenLabsAPIBase      = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsDefaultModel = "eleven_multilingual_v2"
	maxAudioBytes          = 10 << 20
)

// TTSConfig configures one text-to-speech backend.
type TTSConfig struct {
	Provider string // "openai" | "elevenlabs"
	APIBase  string
	APIKey   string
	Model    string // e.g. "tts-1" (OpenAI) or "eleven_multilingual_v2" (ElevenLabs)
	Voice    string // OpenAI voice name or ElevenLabs voice ID
	Logger   *slog.Logger
}

// TTSProvider synthesizes MP3 audio. It implements domain.Synthesizer.
type TTSProvider struct {
	provider string
	apiBase  string
	apiKey   string
	model    string
	voice    string
	client   *http.Client
	logger   *slog.Logger
}

func NewTTSProvider(cfg TTSConfig) *TTSProvider {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	switch cfg.Provider {
	case "elevenlabs":
		if cfg.APIBase == "" {
			cfg.APIBase = elevenLabsAPIBase
		}
		if cfg.Model == "" {
			cfg.Model = elevenLabsDefaultModel
		}
		if cfg.Voice == "" {
			cfg.Voice = elevenLabsDefaultVoice
		}
	default:
		if cfg.APIBase == "" {
			cfg.APIBase = "https://api.openai.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "tts-1"
		}
		if cfg.Voice == "" {
			cfg.Voice = "alloy"
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TTSProvider{
		provider: cfg.Provider,
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		voice:    cfg.Voice,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   cfg.Logger,
	}
}

func (t *TTSProvider) Name() string { return t.provider }

// Synthesize converts text to MP3 audio.
func (t *TTSProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("%s tts: %w", t.provider, domain.ErrNotConfigured)
	}
	var req *http.Request
	var err error
	switch t.provider {
	case "openai":
		req, err = t.openAIRequest(ctx, text)
	case "elevenlabs":
		req, err = t.elevenLabsRequest(ctx, text)
	default:
		return nil, fmt.Errorf("unsupported TTS provider: %s", t.provider)
	}
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s tts request: %w", t.provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(t.provider+" tts", resp.StatusCode, resp.Body)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("%s tts read: %w", t.provider, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s tts: empty audio", t.provider)
	}
	return audio, nil
}

func (t *TTSProvider) openAIRequest(ctx context.Context, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{
		"model":           t.model,
		"input":           text,
		"voice":           t.voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiBase+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (t *TTSProvider) elevenLabsRequest(ctx context.Context, text string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": t.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	url := fmt.Sprintf("%s/text-to-speech/%s", t.apiBase, t.voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	return req, nil
}
