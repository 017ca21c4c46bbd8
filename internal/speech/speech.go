// Package speech renders the opening of an answer as a playable voice note.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"truthline/internal/domain"
	"truthline/internal/provider"
	"truthline/internal/sanitize"
)

// DefaultSentences is how many leading sentences are spoken.
const DefaultSentences = 3

var sentenceEnd = regexp.MustCompile(`[.!?…]+["')\]]*\s+`)

// Extract returns the first n sentences of text as plain speakable prose.
// Markup, citations and pictographic symbols are removed.
func Extract(text string, n int) string {
	if n <= 0 {
		n = DefaultSentences
	}
	plain := sanitize.Sanitize(text, sanitize.Speech)
	plain = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.So, r) || r == '\uFE0F' || r == '\u200D' || r == '•' {
			return -1
		}
		return r
	}, plain)
	plain = strings.Join(strings.Fields(plain), " ")
	if plain == "" {
		return ""
	}

	ends := sentenceEnd.FindAllStringIndex(plain+" ", n)
	if len(ends) < n {
		return plain
	}
	return strings.TrimSpace(plain[:ends[n-1][1]-1])
}

// Chain tries each synthesizer once, in order, and stops at the first
// that returns audio.
type Chain struct {
	synths []domain.Synthesizer
	logger *slog.Logger
}

// NewChain keeps at most a primary and a secondary synthesizer.
func NewChain(synths []domain.Synthesizer, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if len(synths) > 2 {
		synths = synths[:2]
	}
	return &Chain{synths: synths, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.synths))
	for i, s := range c.synths {
		names[i] = s.Name()
	}
	return strings.Join(names, "→")
}

func (c *Chain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return provider.TryInOrder(c.synths, domain.Synthesizer.Name, c.logger,
		func(s domain.Synthesizer) ([]byte, error) {
			audio, err := s.Synthesize(ctx, text)
			if err == nil && len(audio) == 0 {
				err = errors.New("empty audio")
			}
			return audio, err
		})
}

// AdapterConfig wires a synthesizer to an artifact store.
type AdapterConfig struct {
	Synth     domain.Synthesizer
	Store     *Store
	Sentences int
	Logger    *slog.Logger
}

// Adapter produces a public audio URL for an answer.
type Adapter struct {
	synth     domain.Synthesizer
	store     *Store
	sentences int
	logger    *slog.Logger
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sentences <= 0 {
		cfg.Sentences = DefaultSentences
	}
	return &Adapter{
		synth:     cfg.Synth,
		store:     cfg.Store,
		sentences: cfg.Sentences,
		logger:    cfg.Logger,
	}
}

// Enabled reports whether synthesized audio can be published.
func (a *Adapter) Enabled() bool {
	return a != nil && a.synth != nil && a.store != nil && a.store.baseURL != ""
}

// Clip is a published voice note and the words it speaks.
type Clip struct {
	URL  string
	Text string
}

// Speak synthesizes the opening sentences of text and returns the clip
// served from the artifact store.
func (a *Adapter) Speak(ctx context.Context, text string) (Clip, error) {
	if !a.Enabled() {
		return Clip{}, domain.ErrNotConfigured
	}
	extract := Extract(text, a.sentences)
	if extract == "" {
		return Clip{}, errors.New("speech: nothing to say")
	}
	audio, err := a.synth.Synthesize(ctx, extract)
	if err != nil {
		return Clip{}, fmt.Errorf("speech: %w", err)
	}
	url, err := a.store.Save(audio)
	if err != nil {
		return Clip{}, err
	}
	a.logger.Debug("speech: audio saved", "url", url, "bytes", len(audio))
	return Clip{URL: url, Text: extract}, nil
}
