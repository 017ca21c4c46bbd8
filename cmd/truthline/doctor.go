package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"truthline/internal/config"
	"truthline/internal/store"

	"github.com/spf13/cobra"
)

// report tallies doctor results.
type report struct {
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-22s %s\n", check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-22s %s\n", check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-22s %s\n", check, detail)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your truthline setup",
		Long: `Verifies the config file, provider credentials, audio directory,
listen port and risk cache. Reports pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			fmt.Printf("truthline doctor v%s\n\n", version)
			r := &report{}

			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", "not found at "+cfgPath)
				fmt.Println("\nRun 'truthline config init' to create one.")
				return fmt.Errorf("no config")
			}
			r.pass("Config file", cfgPath)

			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return summarize(r)
			}
			r.pass("Config validation", "valid")

			checkProviders(r, cfg)
			checkTransports(r, cfg)

			audioDir := config.ExpandPath(cfg.Server.AudioDir)
			if err := checkWritableDir(audioDir); err != nil {
				r.fail("Audio directory", err.Error())
			} else {
				r.pass("Audio directory", audioDir)
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				r.warn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
			} else {
				r.pass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
			}

			if cfg.Risk.CacheTTL > 0 && cfg.Risk.CacheDB != "" {
				dbPath := config.ExpandPath(cfg.Risk.CacheDB)
				if err := checkRiskCache(dbPath); err != nil {
					r.fail("Risk cache", err.Error())
				} else {
					r.pass("Risk cache", dbPath)
				}
			}

			return summarize(r)
		},
	}
}

func checkProviders(r *report, cfg *config.Config) {
	usable := 0
	for _, name := range cfg.Reasoning.Failover {
		p, ok := cfg.Reasoning.Providers[name]
		switch {
		case !ok:
			r.fail("Reasoning: "+name, "listed in failover but not defined")
		case p.APIKey == "":
			r.warn("Reasoning: "+name, "no API key, answers a not-configured notice")
		default:
			usable++
			r.pass("Reasoning: "+name, p.Kind)
		}
	}
	if usable == 0 {
		r.fail("Reasoning", "no usable provider, every reply will be a not-configured notice")
	}

	optional := []struct {
		name, key, missing string
	}{
		{"Transcription", cfg.Transcription.APIKey, "voice notes get a not-configured notice"},
		{"Vision", cfg.Vision.APIKey, "images get a not-configured notice"},
		{"URL risk", cfg.Risk.APIKey, "links are scored as unknown"},
		{"Transcript service", cfg.Extract.TranscriptAPIKey, "video links fall back to page extraction"},
	}
	for _, o := range optional {
		if o.key == "" {
			r.warn(o.name, "no API key, "+o.missing)
		} else {
			r.pass(o.name, "configured")
		}
	}

	switch {
	case cfg.TTS.Primary.Provider == "":
		r.warn("Text-to-speech", "no provider, voice replies disabled")
	case cfg.Server.PublicBaseURL == "":
		r.warn("Text-to-speech", "server.publicBaseURL empty, clips cannot be linked")
	default:
		r.pass("Text-to-speech", cfg.TTS.Primary.Provider)
	}
}

func checkTransports(r *report, cfg *config.Config) {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		r.warn("Twilio", "no credentials, media fetch and pushes will fail")
	} else {
		r.pass("Twilio", cfg.Twilio.AccountSID)
	}
	if !cfg.Twilio.ValidateSignature {
		r.warn("Twilio signature", "validation off, anyone can post to /webhook")
	}
	if cfg.Telegram.Enabled {
		if cfg.Telegram.WebhookSecret == "" {
			r.warn("Telegram", "enabled without webhookSecret")
		} else {
			r.pass("Telegram", "enabled")
		}
	}
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	probe := filepath.Join(dir, ".doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	return os.Remove(probe)
}

func checkRiskCache(dbPath string) error {
	cache, err := store.OpenRiskCache(dbPath, time.Hour, logger)
	if err != nil {
		return err
	}
	defer cache.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return cache.Ping(ctx)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return ln.Close()
}

func summarize(r *report) error {
	fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned == 0 {
		fmt.Println("All checks passed.")
	}
	return nil
}
