package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// FileURLResolver turns a Telegram file ID into a download URL.
// *tgbotapi.BotAPI satisfies it.
type FileURLResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

type TelegramFetcherConfig struct {
	Bot      FileURLResolver
	MaxBytes int64
	Client   *http.Client
	Logger   *slog.Logger
}

// TelegramFetcher downloads files referenced by Telegram file ID.
type TelegramFetcher struct {
	bot      FileURLResolver
	maxBytes int64
	client   *http.Client
	logger   *slog.Logger
}

func NewTelegramFetcher(cfg TelegramFetcherConfig) *TelegramFetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TelegramFetcher{bot: cfg.Bot, maxBytes: cfg.MaxBytes, client: cfg.Client, logger: cfg.Logger}
}

func (f *TelegramFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if f.bot == nil {
		return nil, ErrCredentialsMissing
	}
	fileURL, err := f.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("media: resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request: %w", err)
	}
	data, err := download(f.client, req, f.maxBytes)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("telegram media fetched", "file_id", fileID, "bytes", len(data))
	return data, nil
}
