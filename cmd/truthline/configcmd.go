package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"truthline/internal/config"
	"truthline/internal/provider"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Create, read and update the YAML config. Secrets are masked in list output.",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Config written to %s\n", cfgPath)
			fmt.Println("Set reasoning.providers.perplexity.apiKey and twilio credentials, then run 'truthline doctor'.")
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. reply.maxChars)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			return printJSON(val)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. tts.sentences 2)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values as dot paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefaults(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flat := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(flat))
			for k := range flat {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, flat[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ExpandPath(resolveConfigPath()))
		},
	})

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured providers and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			factory := provider.NewFactory(cfg, logger)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			for _, name := range cfg.Reasoning.Failover {
				p, err := factory.Get(name)
				if err != nil {
					logger.Info("reasoning", "provider", name, "healthy", false, "err", err)
					continue
				}
				if err := p.Healthy(ctx); err != nil {
					logger.Info("reasoning", "provider", name, "healthy", false, "err", err)
					continue
				}
				logger.Info("reasoning", "provider", name, "healthy", true)
			}
			logger.Info("transcription", "configured", cfg.Transcription.APIKey != "")
			logger.Info("vision", "configured", cfg.Vision.APIKey != "")
			logger.Info("risk", "configured", cfg.Risk.APIKey != "", "cache_ttl_hours", cfg.Risk.CacheTTL)
			logger.Info("tts", "primary", cfg.TTS.Primary.Provider, "secondary", cfg.TTS.Secondary.Provider, "public_base_url", cfg.Server.PublicBaseURL)
			logger.Info("transports", "twilio_push", cfg.Twilio.PushOnURL && cfg.Twilio.AccountSID != "", "telegram", cfg.Telegram.Enabled)
			return nil
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
