package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"truthline/internal/config"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	verbose    bool
	logJSON    bool
)

func main() {
	logger = newLogger("info", false)

	root := &cobra.Command{
		Use:           "truthline",
		Short:         "Truthline: fact-check forwarded messages over SMS, WhatsApp and Telegram",
		Long:          "Truthline receives messaging webhooks, checks the claim with an LLM and replies with a verdict, text and an optional voice note.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.truthline/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs")

	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config (or defaults when the file is missing) and
// rebuilds the global logger from it. Flags win over the file.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger = newLogger(level, cfg.Log.JSON || logJSON)
	slog.SetDefault(logger)
	return cfg, nil
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
