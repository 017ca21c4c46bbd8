package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for truthline.
type Config struct {
	Log           LogConfig           `yaml:"log" json:"log"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	Twilio        TwilioConfig        `yaml:"twilio" json:"twilio"`
	Telegram      TelegramConfig      `yaml:"telegram" json:"telegram"`
	Reasoning     ReasoningConfig     `yaml:"reasoning" json:"reasoning"`
	Transcription TranscriptionConfig `yaml:"transcription" json:"transcription"`
	Vision        VisionConfig        `yaml:"vision" json:"vision"`
	Risk          RiskConfig          `yaml:"risk" json:"risk"`
	Extract       ExtractConfig       `yaml:"extract" json:"extract"`
	TTS           TTSConfig           `yaml:"tts" json:"tts"`
	Reply         ReplyConfig         `yaml:"reply" json:"reply"`
	KeepAlive     KeepAliveConfig     `yaml:"keepAlive" json:"keepAlive"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" json:"json"`
}

type ServerConfig struct {
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	PublicBaseURL string `yaml:"publicBaseURL" json:"publicBaseURL" validate:"omitempty,url"`
	AudioDir      string `yaml:"audioDir" json:"audioDir" validate:"required"`
	BodyLimit     string `yaml:"bodyLimit" json:"bodyLimit"`
	Debug         bool   `yaml:"debug" json:"debug"` // enables POST /debug/check
}

type TwilioConfig struct {
	AccountSID        string `yaml:"accountSID" json:"accountSID"`
	AuthToken         string `yaml:"authToken" json:"authToken"`
	From              string `yaml:"from,omitempty" json:"from,omitempty"` // overrides the inbound To address for pushes
	ValidateSignature bool   `yaml:"validateSignature" json:"validateSignature"`
	PushOnURL         bool   `yaml:"pushOnURL" json:"pushOnURL"`
	PushTimeout       int    `yaml:"pushTimeout" json:"pushTimeout" validate:"min=1,max=60"` // seconds
	MaxMediaBytes     int64  `yaml:"maxMediaBytes" json:"maxMediaBytes" validate:"min=1024"`
}

type TelegramConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Token         string `yaml:"token" json:"token" validate:"required_if=Enabled true"`
	WebhookSecret string `yaml:"webhookSecret,omitempty" json:"webhookSecret,omitempty"`
}

type ReasoningConfig struct {
	Providers   map[string]ProviderConfig `yaml:"providers" json:"providers" validate:"dive"`
	Failover    []string                  `yaml:"failover" json:"failover" validate:"min=1"`
	Timeout     int                       `yaml:"timeout" json:"timeout" validate:"min=1,max=600"` // seconds
	MaxTokens   int                       `yaml:"maxTokens" json:"maxTokens" validate:"min=64"`
	Temperature float64                   `yaml:"temperature" json:"temperature" validate:"min=0,max=2"`
}

type ProviderConfig struct {
	Kind    string `yaml:"kind" json:"kind" validate:"oneof=openai claude gemini"`
	APIBase string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
}

type TranscriptionConfig struct {
	APIBase  string `yaml:"apiBase" json:"apiBase"`
	APIKey   string `yaml:"apiKey" json:"apiKey"`
	Model    string `yaml:"model" json:"model"`
	Language string `yaml:"language" json:"language"`
}

type VisionConfig struct {
	APIBase string `yaml:"apiBase" json:"apiBase"`
	APIKey  string `yaml:"apiKey" json:"apiKey"`
}

type RiskConfig struct {
	APIBase    string `yaml:"apiBase" json:"apiBase"`
	APIKey     string `yaml:"apiKey" json:"apiKey"`
	Strictness int    `yaml:"strictness" json:"strictness" validate:"min=0,max=2"`
	CacheDB    string `yaml:"cacheDB" json:"cacheDB"`
	CacheTTL   int    `yaml:"cacheTTL" json:"cacheTTL" validate:"min=0"` // hours, 0 disables the cache
}

type ExtractConfig struct {
	TranscriptAPIBase string   `yaml:"transcriptAPIBase" json:"transcriptAPIBase"`
	TranscriptAPIKey  string   `yaml:"transcriptAPIKey" json:"transcriptAPIKey"`
	TranscriptHosts   []string `yaml:"transcriptHosts" json:"transcriptHosts"`
	Article           bool     `yaml:"article" json:"article"`
	Browser           bool     `yaml:"browser" json:"browser"`
	MaxChars          int      `yaml:"maxChars" json:"maxChars" validate:"min=200"`
	Timeout           int      `yaml:"timeout" json:"timeout" validate:"min=1,max=120"` // seconds
}

type TTSConfig struct {
	Primary   SynthConfig `yaml:"primary" json:"primary"`
	Secondary SynthConfig `yaml:"secondary" json:"secondary"`
	Sentences int         `yaml:"sentences" json:"sentences" validate:"min=1,max=10"`
}

type SynthConfig struct {
	Provider string `yaml:"provider" json:"provider" validate:"omitempty,oneof=openai elevenlabs"`
	APIBase  string `yaml:"apiBase,omitempty" json:"apiBase,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
	Voice    string `yaml:"voice,omitempty" json:"voice,omitempty"`
}

type ReplyConfig struct {
	Language         string `yaml:"language" json:"language" validate:"required"`
	MaxChars         int    `yaml:"maxChars" json:"maxChars" validate:"min=200,max=1600"`
	SummaryBudget    int    `yaml:"summaryBudget" json:"summaryBudget" validate:"min=100"`
	LongLine         int    `yaml:"longLine" json:"longLine" validate:"min=40"`
	TelegramMaxChars int    `yaml:"telegramMaxChars" json:"telegramMaxChars" validate:"min=200,max=4096"`
}

type KeepAliveConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Interval string `yaml:"interval" json:"interval"` // cron @every duration, e.g. "10m"
}

// DefaultConfigDir returns the default config directory (~/.truthline).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".truthline"
	}
	return filepath.Join(home, ".truthline")
}

func DefaultConfigPath() string {
	if p := os.Getenv("TRUTHLINE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Server.AudioDir = ExpandPath(cfg.Server.AudioDir)
	cfg.Risk.CacheDB = ExpandPath(cfg.Risk.CacheDB)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the rules that span sections.
func Validate(cfg *Config) error {
	var errs []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	for _, name := range cfg.Reasoning.Failover {
		if _, ok := cfg.Reasoning.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("reasoning.failover references unknown provider: %s", name))
		}
	}
	if cfg.Reply.SummaryBudget >= cfg.Reply.MaxChars {
		errs = append(errs, "reply.summaryBudget must be smaller than reply.maxChars")
	}
	if cfg.TTS.Secondary.Provider != "" && cfg.TTS.Primary.Provider == "" {
		errs = append(errs, "tts.secondary requires tts.primary")
	}
	if cfg.Twilio.ValidateSignature && cfg.Twilio.AuthToken == "" {
		errs = append(errs, "twilio.validateSignature requires twilio.authToken")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	// Namespace is "Config.Reply.MaxChars"; drop the root type.
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s (got %v)", ns, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", ns, fe.Tag())
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
