package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"truthline/internal/channel"
	"truthline/internal/config"
	"truthline/internal/domain"
	"truthline/internal/keepalive"
	"truthline/internal/pipeline"
	"truthline/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 15 * time.Second
	telegramPath    = "/telegram/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Serves the Twilio and Telegram webhooks, generated voice clips, /health and /metrics. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	delivery := pipeline.NewCoordinator(pipeline.CoordinatorConfig{
		Pusher:      a.pusher(),
		PushTimeout: time.Duration(cfg.Twilio.PushTimeout) * time.Second,
		Logger:      logger,
	})

	routes := []server.Registrar{
		channel.NewTwilio(channel.TwilioConfig{
			Pipeline:          a.pipeline,
			Delivery:          delivery,
			Profile:           a.profiles[channel.TwilioTransport],
			AuthToken:         cfg.Twilio.AuthToken,
			ValidateSignature: cfg.Twilio.ValidateSignature,
			PublicBaseURL:     cfg.Server.PublicBaseURL,
			Logger:            logger,
		}),
	}

	var tg *channel.Telegram
	if a.bot != nil {
		tg = channel.NewTelegram(channel.TelegramConfig{
			Path:          telegramPath,
			Bot:           a.bot,
			Pipeline:      a.pipeline,
			Profile:       a.profiles[channel.TelegramTransport],
			WebhookSecret: cfg.Telegram.WebhookSecret,
			Logger:        logger,
		})
		routes = append(routes, tg)
		if err := a.registerTelegramWebhook(telegramPath); err != nil {
			logger.Warn("telegram webhook not registered", "err", err)
		}
	}

	if cfg.Server.Debug {
		logger.Warn("debug endpoint enabled", "path", "/debug/check")
		routes = append(routes, server.NewDebugHandler(a.pipeline, a.profiles))
	}

	audioDir := ""
	if a.audio != nil {
		audioDir = a.audio.Dir()
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := server.New(server.Config{
		Addr:      addr,
		AudioDir:  audioDir,
		BodyLimit: cfg.Server.BodyLimit,
		Routes:    routes,
		Logger:    logger,
	})

	sched, err := keepalive.New(keepaliveConfig(cfg, a))
	if err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("truthline listening", "addr", addr, "telegram", tg != nil, "voice", a.audio != nil)
		return srv.Start()
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if tg != nil {
			done := make(chan struct{})
			go func() {
				tg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-shutdownCtx.Done():
				logger.Warn("shutdown timed out waiting for telegram replies")
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// pusher returns the Twilio REST sender, or nil when pushes are off or
// credentials are missing.
func (a *app) pusher() domain.Pusher {
	if !a.cfg.Twilio.PushOnURL {
		return nil
	}
	p, err := channel.NewTwilioPusher(channel.TwilioPusherConfig{
		AccountSID: a.cfg.Twilio.AccountSID,
		AuthToken:  a.cfg.Twilio.AuthToken,
		From:       a.cfg.Twilio.From,
		Logger:     logger,
	})
	if err != nil {
		logger.Info("twilio push disabled", "err", err)
		return nil
	}
	return p
}

func keepaliveConfig(cfg *config.Config, a *app) keepalive.Config {
	kc := keepalive.Config{Logger: logger}
	if cfg.KeepAlive.Enabled {
		base := strings.TrimRight(cfg.Server.PublicBaseURL, "/")
		if base == "" {
			base = "http://localhost:" + strconv.Itoa(cfg.Server.Port)
		}
		kc.PingURL = base + "/health"
		if d, err := time.ParseDuration(cfg.KeepAlive.Interval); err == nil {
			kc.Interval = d
		} else {
			logger.Warn("bad keepAlive.interval, using default", "value", cfg.KeepAlive.Interval, "err", err)
		}
	}
	if a.cache != nil {
		cache := a.cache
		kc.Jobs = append(kc.Jobs, keepalive.Job{
			Name:     "risk-cache-prune",
			Schedule: "@every 1h",
			Run: func(ctx context.Context) error {
				n, err := cache.Prune(ctx)
				if err == nil && n > 0 {
					logger.Info("risk cache pruned", "rows", n)
				}
				return err
			},
		})
	}
	return kc
}
