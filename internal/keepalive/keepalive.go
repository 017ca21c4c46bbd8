// Package keepalive runs the background timers: a periodic self-ping of the
// health endpoint and housekeeping jobs. None of them touch request state.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named housekeeping task on a cron schedule.
type Job struct {
	Name     string
	Schedule string // cron spec or @every <duration>
	Run      func(ctx context.Context) error
}

type Config struct {
	PingURL  string        // empty disables the self-ping
	Interval time.Duration // self-ping period, default 10m
	Jobs     []Job
	Client   *http.Client
	Logger   *slog.Logger
}

// Scheduler owns one cron instance for all background work.
type Scheduler struct {
	cron    *cron.Cron
	pingURL string
	client  *http.Client
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		pingURL: cfg.PingURL,
		client:  cfg.Client,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if s.pingURL != "" {
		if _, err := s.cron.AddFunc("@every "+cfg.Interval.String(), func() { _ = s.Ping(s.ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("keepalive: schedule ping: %w", err)
		}
	}
	for _, j := range cfg.Jobs {
		if _, err := s.cron.AddFunc(j.Schedule, func() { s.runJob(j) }); err != nil {
			cancel()
			return nil, fmt.Errorf("keepalive: schedule %s: %w", j.Name, err)
		}
	}
	return s, nil
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("background scheduler started", "entries", len(s.cron.Entries()), "ping", s.pingURL)
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("background scheduler stopped")
}

// Ping GETs the health endpoint once.
func (s *Scheduler) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pingURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("keepalive ping failed", "url", s.pingURL, "err", err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("keepalive: status %d", resp.StatusCode)
		s.logger.Warn("keepalive ping failed", "url", s.pingURL, "status", resp.StatusCode)
		return err
	}
	s.logger.Debug("keepalive ping ok", "url", s.pingURL)
	return nil
}

func (s *Scheduler) runJob(j Job) {
	start := time.Now()
	if err := j.Run(s.ctx); err != nil {
		s.logger.Warn("background job failed", "job", j.Name, "err", err)
		return
	}
	s.logger.Debug("background job done", "job", j.Name, "duration_ms", time.Since(start).Milliseconds())
}
