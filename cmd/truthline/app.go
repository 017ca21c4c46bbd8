package main

import (
	"fmt"
	"strings"
	"time"

	"truthline/internal/channel"
	"truthline/internal/config"
	"truthline/internal/domain"
	"truthline/internal/extract"
	"truthline/internal/media"
	"truthline/internal/pipeline"
	"truthline/internal/provider"
	"truthline/internal/sanitize"
	"truthline/internal/speech"
	"truthline/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// app holds everything built from one config: the pipeline, its
// optional collaborators and the resources that need closing.
type app struct {
	cfg      *config.Config
	factory  *provider.Factory
	pipeline *pipeline.Pipeline
	bot      *tgbotapi.BotAPI // nil unless telegram is enabled
	cache    *store.RiskCache // nil when the risk cache is off
	audio    *speech.Store    // nil when no public base URL is set
	profiles map[string]sanitize.Profile
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, factory: provider.NewFactory(cfg, logger)}

	var reasoning domain.Provider
	if r, err := a.factory.Reasoning(); err != nil {
		logger.Warn("no reasoning provider, replies will be a not-configured notice", "err", err)
	} else {
		reasoning = r
	}

	var risk domain.RiskScorer
	if cfg.Risk.APIKey != "" {
		risk = a.factory.RiskScorer()
		if cfg.Risk.CacheTTL > 0 && cfg.Risk.CacheDB != "" {
			cache, err := store.OpenRiskCache(config.ExpandPath(cfg.Risk.CacheDB), time.Duration(cfg.Risk.CacheTTL)*time.Hour, logger)
			if err != nil {
				logger.Warn("risk cache unavailable, scoring uncached", "err", err)
			} else {
				a.cache = cache
				risk = store.NewCachedScorer(risk, cache)
			}
		}
	}

	if cfg.Telegram.Enabled {
		bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, provider.SharedHTTPClient(30*time.Second))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		a.bot = bot
	}

	speechAdapter, err := a.buildSpeech()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = pipeline.New(pipeline.Config{
		Reasoning:   reasoning,
		Transcriber: a.factory.Transcriber(),
		Images:      a.factory.ImageAnalyzer(),
		Extractor:   a.buildExtractor(),
		Risk:        risk,
		Speech:      speechAdapter,
		Fetchers:    a.buildFetchers(),
		Language:    cfg.Reply.Language,
		MaxTokens:   cfg.Reasoning.MaxTokens,
		Temperature: cfg.Reasoning.Temperature,
		Logger:      logger,
	})

	a.profiles = map[string]sanitize.Profile{
		channel.TwilioTransport:   sanitize.Twilio.WithLimits(cfg.Reply.MaxChars, cfg.Reply.SummaryBudget, cfg.Reply.LongLine),
		channel.TelegramTransport: sanitize.Telegram.WithLimits(cfg.Reply.TelegramMaxChars, 0, 0),
	}
	return a, nil
}

func (a *app) buildExtractor() domain.ContentExtractor {
	ec := a.cfg.Extract
	timeout := time.Duration(ec.Timeout) * time.Second

	var chain []extract.Extractor
	if ec.TranscriptAPIKey != "" {
		chain = append(chain, extract.NewTranscriptExtractor(extract.TranscriptConfig{
			APIBase: ec.TranscriptAPIBase,
			APIKey:  ec.TranscriptAPIKey,
			Hosts:   ec.TranscriptHosts,
			Timeout: timeout,
		}))
	}
	if ec.Article {
		chain = append(chain, extract.NewArticleExtractor(extract.ArticleConfig{Timeout: timeout, Logger: logger}))
	}
	if ec.Browser {
		chain = append(chain, extract.NewBrowserExtractor(extract.BrowserConfig{Timeout: timeout, Logger: logger}))
	}
	if len(chain) == 0 {
		return nil
	}
	return extract.NewChain(extract.ChainConfig{Extractors: chain, MaxChars: ec.MaxChars, Logger: logger})
}

func (a *app) buildFetchers() map[string]domain.MediaFetcher {
	fetchers := map[string]domain.MediaFetcher{
		channel.TwilioTransport: media.NewTwilioFetcher(media.TwilioFetcherConfig{
			AccountSID: a.cfg.Twilio.AccountSID,
			AuthToken:  a.cfg.Twilio.AuthToken,
			MaxBytes:   a.cfg.Twilio.MaxMediaBytes,
			Logger:     logger,
		}),
	}
	if a.bot != nil {
		fetchers[channel.TelegramTransport] = media.NewTelegramFetcher(media.TelegramFetcherConfig{
			Bot:      a.bot,
			MaxBytes: a.cfg.Twilio.MaxMediaBytes,
			Logger:   logger,
		})
	}
	return fetchers
}

// buildSpeech returns nil when voice replies cannot be published: no TTS
// backend or no public URL to serve clips from.
func (a *app) buildSpeech() (*speech.Adapter, error) {
	synths := a.factory.Synthesizers()
	if len(synths) == 0 {
		return nil, nil
	}
	if a.cfg.Server.PublicBaseURL == "" {
		logger.Warn("tts configured but server.publicBaseURL is empty, voice replies disabled")
		return nil, nil
	}
	st, err := speech.NewStore(config.ExpandPath(a.cfg.Server.AudioDir), a.cfg.Server.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("audio store: %w", err)
	}
	a.audio = st
	return speech.NewAdapter(speech.AdapterConfig{
		Synth:     speech.NewChain(synths, logger),
		Store:     st,
		Sentences: a.cfg.TTS.Sentences,
		Logger:    logger,
	}), nil
}

// registerTelegramWebhook points the bot at this server. It needs a
// public base URL; without one the webhook has to be set by hand.
func (a *app) registerTelegramWebhook(path string) error {
	if a.bot == nil || a.cfg.Server.PublicBaseURL == "" {
		return nil
	}
	params := map[string]string{"url": strings.TrimRight(a.cfg.Server.PublicBaseURL, "/") + path}
	if a.cfg.Telegram.WebhookSecret != "" {
		params["secret_token"] = a.cfg.Telegram.WebhookSecret
	}
	if _, err := a.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	logger.Info("telegram webhook registered", "url", params["url"])
	return nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("close risk cache", "err", err)
		}
	}
}
