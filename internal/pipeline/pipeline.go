// Package pipeline turns one inbound event into one bounded reply:
// classify, fetch, normalize, enrich, ask the reasoning provider, then
// sanitize and optionally voice the answer.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"truthline/internal/classify"
	"truthline/internal/domain"
	"truthline/internal/media"
	"truthline/internal/metrics"
	"truthline/internal/sanitize"
	"truthline/internal/speech"
)

const defaultPromptChars = 1100

// Config wires the capability handles into a pipeline. Any handle may be
// nil; the matching input kind then gets the not-configured notice.
type Config struct {
	Reasoning   domain.Provider
	Transcriber domain.Transcriber
	Images      domain.ImageAnalyzer
	Extractor   domain.ContentExtractor
	Risk        domain.RiskScorer
	Speech      *speech.Adapter
	Fetchers    map[string]domain.MediaFetcher // keyed by transport name

	Language    string
	Model       string
	MaxTokens   int
	Temperature float64

	Logger *slog.Logger
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	reasoning   domain.Provider
	transcriber domain.Transcriber
	images      domain.ImageAnalyzer
	extractor   domain.ContentExtractor
	risk        domain.RiskScorer
	speech      *speech.Adapter
	fetchers    map[string]domain.MediaFetcher
	prompt      PromptOptions
	logger      *slog.Logger
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	return &Pipeline{
		reasoning:   cfg.Reasoning,
		transcriber: cfg.Transcriber,
		images:      cfg.Images,
		extractor:   cfg.Extractor,
		risk:        cfg.Risk,
		speech:      cfg.Speech,
		fetchers:    cfg.Fetchers,
		prompt: PromptOptions{
			Language:    cfg.Language,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
		logger: cfg.Logger,
	}
}

// Process runs ev through every stage and returns the reply bounded for
// profile. It never returns an error: every failure maps to a notice.
func (p *Pipeline) Process(ctx context.Context, ev domain.InboundEvent, profile sanitize.Profile) domain.Payload {
	start := time.Now()
	defer metrics.PipelineDone(start)

	kind := classify.Classify(ev)
	metrics.RequestReceived(string(kind))
	log := p.logger.With("transport", ev.Transport, "kind", kind)

	notice := func(text string) domain.Payload {
		return domain.Payload{Text: sanitize.Clean(text, profile), Kind: kind}
	}

	if kind == domain.KindNone {
		return notice(NoticeEmpty)
	}
	if p.reasoning == nil {
		log.Warn("no reasoning provider configured")
		return notice(NoticeNotConfigured)
	}

	query, fail := p.normalize(ctx, ev, kind, log)
	if fail != "" {
		return notice(fail)
	}

	e := p.enrich(ctx, query)

	opts := p.prompt
	opts.MaxChars = profile.Budget
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultPromptChars
	}
	resp, err := p.reasoning.Chat(ctx, BuildRequest(query, e, opts))
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty answer")
	}
	if errors.Is(err, domain.ErrNotConfigured) {
		log.Warn("reasoning provider not configured", "provider", p.reasoning.Name(), "err", err)
		return notice(NoticeNotConfigured)
	}
	if err != nil {
		metrics.ProviderError("reasoning")
		log.Error("reasoning provider failed", "provider", p.reasoning.Name(), "err", err)
		return notice(NoticeReasoning)
	}
	log.Info("answer received",
		"provider", p.reasoning.Name(),
		"latency_ms", resp.LatencyMs,
		"finish", resp.FinishReason,
	)

	verdict, body := ParseVerdict(resp.Content)
	out := domain.Payload{
		Text:    sanitize.Clean(Render(verdict, body), profile),
		Verdict: verdict,
		Kind:    kind,
		URL:     e.URL,
	}

	if kind == domain.KindAudio && p.speech.Enabled() {
		clip, err := p.speech.Speak(ctx, spoken(verdict)+" "+body)
		if err != nil {
			p.providerFailed("speech", err)
		} else {
			out.AudioURL = clip.URL
			out.Speech = clip.Text
		}
	}
	return out
}

// normalize produces the query text for kind, or a notice to send instead.
func (p *Pipeline) normalize(ctx context.Context, ev domain.InboundEvent, kind domain.InputKind, log *slog.Logger) (string, string) {
	note := strings.TrimSpace(ev.Text)
	if kind == domain.KindText {
		return note, ""
	}

	if kind == domain.KindAudio && p.transcriber == nil || kind == domain.KindImage && p.images == nil {
		log.Warn("no normalizer configured")
		return "", NoticeNotConfigured
	}
	fetcher := p.fetchers[ev.Transport]
	if fetcher == nil {
		log.Warn("no media fetcher for transport")
		return "", NoticeNotConfigured
	}
	data, err := fetcher.Fetch(ctx, ev.MediaRef)
	if errors.Is(err, media.ErrCredentialsMissing) {
		log.Warn("media fetch skipped", "err", err)
		return "", NoticeNotConfigured
	}
	if err != nil {
		metrics.ProviderError("fetch")
		log.Warn("media fetch failed", "err", err)
		return "", NoticeFetchFailed
	}

	var text, retry string
	if kind == domain.KindAudio {
		retry = NoticeRetryAudio
		text, err = p.transcriber.Transcribe(ctx, data, audioFilename(ev.ContentType))
	} else {
		retry = NoticeRetryImage
		text, err = p.images.Analyze(ctx, data)
	}
	if errors.Is(err, domain.ErrNotConfigured) {
		log.Warn("normalizer not configured", "err", err)
		return "", NoticeNotConfigured
	}
	if err != nil {
		p.providerFailed(string(kind), err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", retry
	}
	log.Debug("attachment normalized", "chars", len(text))

	if note != "" {
		text += "\n\nUser note: " + note
	}
	return text, ""
}

func (p *Pipeline) providerFailed(stage string, err error, args ...any) {
	metrics.ProviderError(stage)
	p.logger.Warn(stage+" failed", append([]any{"stage", stage, "err", err}, args...)...)
}

var audioExt = map[string]string{
	"audio/ogg":   "ogg",
	"audio/opus":  "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/aac":   "m4a",
	"audio/amr":   "amr",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/webm":  "webm",
}

// audioFilename names the upload so the transcriber can infer the codec.
func audioFilename(contentType string) string {
	ct, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	if ext, ok := audioExt[strings.TrimSpace(ct)]; ok {
		return "voice." + ext
	}
	return "voice.ogg"
}
