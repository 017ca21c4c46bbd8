package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"truthline/internal/domain"
)

// ErrEmptyAnswer marks a provider reply with no text.
var ErrEmptyAnswer = errors.New("provider returned an empty answer")

// TryInOrder calls fn for each candidate in order and returns the first
// success. Each candidate is attempted once.
func TryInOrder[C, R any](candidates []C, name func(C) string, logger *slog.Logger, fn func(C) (R, error)) (R, error) {
	var zero R
	if len(candidates) == 0 {
		return zero, domain.ErrNotConfigured
	}
	var lastErr error
	for i, c := range candidates {
		res, err := fn(c)
		if err == nil {
			if i > 0 {
				logger.Info("failover: used fallback", "provider", name(c), "attempt", i+1)
			}
			return res, nil
		}
		lastErr = err
		logger.Warn("failover: provider failed, trying next",
			"provider", name(c),
			"attempt", i+1,
			"err", err,
		)
	}
	return zero, fmt.Errorf("all providers in failover chain failed: %w", lastErr)
}

// FailoverProvider tries multiple reasoning providers in order, falling
// back to the next one when the current fails or answers with nothing.
type FailoverProvider struct {
	providers []domain.Provider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover chain from the given providers.
func NewFailoverProvider(providers []domain.Provider, logger *slog.Logger) *FailoverProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverProvider{providers: providers, logger: logger}
}

func (fp *FailoverProvider) Name() string {
	names := make([]string, len(fp.providers))
	for i, p := range fp.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

func (fp *FailoverProvider) Healthy(ctx context.Context) error {
	for _, p := range fp.providers {
		if err := p.Healthy(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no healthy provider in failover chain")
}

// Chat returns the first non-empty answer.
func (fp *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return TryInOrder(fp.providers, domain.Provider.Name, fp.logger, func(p domain.Provider) (*domain.ChatResponse, error) {
		resp, err := p.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return nil, ErrEmptyAnswer
		}
		return resp, nil
	})
}
