package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"truthline/internal/config"
	"truthline/internal/domain"
)

// ProviderConstructor creates a reasoning provider from a config entry.
type ProviderConstructor func(name string, pc config.ProviderConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error)

// Factory creates and caches providers from config.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	constructors map[string]ProviderConstructor
	cache        map[string]domain.Provider
	mu           sync.RWMutex
}

// NewFactory creates a provider factory with the built-in kinds registered.
func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		cfg:          cfg,
		logger:       logger,
		constructors: make(map[string]ProviderConstructor),
		cache:        make(map[string]domain.Provider),
	}
	f.registerDefaults()
	return f
}

// RegisterConstructor adds (or replaces) a constructor for a provider kind.
func (f *Factory) RegisterConstructor(kind string, ctor ProviderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

func (f *Factory) registerDefaults() {
	f.constructors["openai"] = func(name string, pc config.ProviderConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewOpenAI(OpenAIConfig{Name: name, APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Timeout: timeout, Logger: logger}), nil
	}
	f.constructors["claude"] = func(name string, pc config.ProviderConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewClaude(ClaudeConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Timeout: timeout, Logger: logger}), nil
	}
	f.constructors["gemini"] = func(name string, pc config.ProviderConfig, timeout time.Duration, logger *slog.Logger) (domain.Provider, error) {
		return NewGemini(context.Background(), GeminiConfig{APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.Model, Timeout: timeout, Logger: logger})
	}
}

// Get returns the reasoning provider with the given name. Created providers
// are cached so the same instance is reused across requests.
func (f *Factory) Get(name string) (domain.Provider, error) {
	f.mu.RLock()
	if cached, ok := f.cache[name]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Re-check under write lock (another goroutine may have created it).
	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	pc, ok := f.cfg.Reasoning.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	ctor, found := f.constructors[pc.Kind]
	if !found {
		return nil, fmt.Errorf("provider %s: no constructor registered for kind %q", name, pc.Kind)
	}

	timeout := time.Duration(f.cfg.Reasoning.Timeout) * time.Second
	p, err := ctor(name, pc, timeout, f.logger.With("provider", name))
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	f.cache[name] = p
	return p, nil
}

// Reasoning builds the failover chain in configured order. Providers that
// cannot be constructed are skipped with a warning.
func (f *Factory) Reasoning() (domain.Provider, error) {
	var chain []domain.Provider
	for _, name := range f.cfg.Reasoning.Failover {
		p, err := f.Get(name)
		if err != nil {
			f.logger.Warn("skipping reasoning provider", "provider", name, "err", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("reasoning: %w", domain.ErrNotConfigured)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return NewFailoverProvider(chain, f.logger), nil
}

// Transcriber returns the speech-to-text adapter.
func (f *Factory) Transcriber() *WhisperProvider {
	tc := f.cfg.Transcription
	return NewWhisperProvider(WhisperConfig{
		APIBase:  tc.APIBase,
		APIKey:   tc.APIKey,
		Model:    tc.Model,
		Language: tc.Language,
		Logger:   f.logger.With("provider", "whisper"),
	})
}

// ImageAnalyzer returns the vision adapter.
func (f *Factory) ImageAnalyzer() *VisionProvider {
	return NewVisionProvider(VisionConfig{
		APIBase: f.cfg.Vision.APIBase,
		APIKey:  f.cfg.Vision.APIKey,
		Logger:  f.logger.With("provider", "vision"),
	})
}

// RiskScorer returns the URL risk adapter.
func (f *Factory) RiskScorer() *RiskProvider {
	return NewRiskProvider(RiskConfig{
		APIBase:    f.cfg.Risk.APIBase,
		APIKey:     f.cfg.Risk.APIKey,
		Strictness: f.cfg.Risk.Strictness,
		Logger:     f.logger.With("provider", "risk"),
	})
}

// Synthesizers returns the configured TTS backends, primary first.
func (f *Factory) Synthesizers() []domain.Synthesizer {
	var out []domain.Synthesizer
	for _, sc := range []config.SynthConfig{f.cfg.TTS.Primary, f.cfg.TTS.Secondary} {
		if sc.Provider == "" {
			continue
		}
		out = append(out, NewTTSProvider(TTSConfig{
			Provider: sc.Provider,
			APIBase:  sc.APIBase,
			APIKey:   sc.APIKey,
			Model:    sc.Model,
			Voice:    sc.Voice,
			Logger:   f.logger.With("provider", "tts-"+sc.Provider),
		}))
	}
	return out
}
