package config

import (
	"errors"
	"io/fs"
)

func Defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      3000,
			AudioDir:  "~/.truthline/audio",
			BodyLimit: "2M",
		},
		Twilio: TwilioConfig{
			PushOnURL:     true,
			PushTimeout:   10,
			MaxMediaBytes: 16 << 20,
		},
		Reasoning: ReasoningConfig{
			Providers: map[string]ProviderConfig{
				"perplexity": {
					Kind:    "openai",
					APIBase: "https://api.perplexity.ai",
					Model:   "sonar",
				},
			},
			Failover:    []string{"perplexity"},
			Timeout:     60,
			MaxTokens:   900,
			Temperature: 0.2,
		},
		Transcription: TranscriptionConfig{
			APIBase:  "https://api.groq.com/openai/v1",
			Model:    "whisper-large-v3-turbo",
			Language: "en",
		},
		Vision: VisionConfig{
			APIBase: "https://vision.googleapis.com/v1",
		},
		Risk: RiskConfig{
			APIBase:    "https://ipqualityscore.com/api/json/url",
			Strictness: 1,
			CacheDB:    "~/.truthline/risk.db",
			CacheTTL:   24,
		},
		Extract: ExtractConfig{
			TranscriptAPIBase: "https://api.supadata.ai/v1/transcript",
			TranscriptHosts:   []string{"youtube.com", "youtu.be", "tiktok.com", "instagram.com"},
			Article:           true,
			MaxChars:          6000,
			Timeout:           20,
		},
		TTS: TTSConfig{
			Sentences: 3,
		},
		Reply: ReplyConfig{
			Language:         "English",
			MaxChars:         1500,
			SummaryBudget:    1100,
			LongLine:         280,
			TelegramMaxChars: 4000,
		},
		KeepAlive: KeepAliveConfig{
			Enabled:  false,
			Interval: "10m",
		},
	}
}

// LoadOrDefaults loads path, or returns validated defaults when the file
// does not exist.
func LoadOrDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = Defaults()
	cfg.Server.AudioDir = ExpandPath(cfg.Server.AudioDir)
	cfg.Risk.CacheDB = ExpandPath(cfg.Risk.CacheDB)
	return cfg, Validate(cfg)
}
