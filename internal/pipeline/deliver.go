package pipeline

import (
	"context"
	"log/slog"
	"time"

	"truthline/internal/domain"
	"truthline/internal/metrics"
)

const defaultPushTimeout = 10 * time.Second

// Decide picks the one path that carries a reply to the user. A push is
// only trusted when it was attempted and succeeded; the synchronous reply
// is then reduced to an empty acknowledgment.
func Decide(pushAttempted bool, pushErr error) domain.Decision {
	if pushAttempted && pushErr == nil {
		return domain.DecisionPushed
	}
	return domain.DecisionSyncReply
}

type CoordinatorConfig struct {
	Pusher      domain.Pusher // nil disables the push path
	PushTimeout time.Duration
	Logger      *slog.Logger
}

// Coordinator delivers each payload exactly once.
type Coordinator struct {
	pusher      domain.Pusher
	pushTimeout time.Duration
	logger      *slog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = defaultPushTimeout
	}
	return &Coordinator{pusher: cfg.Pusher, pushTimeout: cfg.PushTimeout, logger: cfg.Logger}
}

// Deliver attempts the push path for answers about a URL and reports which
// path the caller must honour. On DecisionPushed the synchronous response
// must be empty.
func (c *Coordinator) Deliver(ctx context.Context, ev domain.InboundEvent, p domain.Payload) domain.Decision {
	attempted := false
	var err error
	if c.pusher != nil && p.URL != "" && p.Text != "" {
		attempted = true
		pushCtx, cancel := context.WithTimeout(ctx, c.pushTimeout)
		err = c.pusher.Push(pushCtx, ev, p)
		cancel()
		if err != nil {
			c.logger.Warn("push delivery failed, using synchronous reply", "to", ev.From, "err", err)
		}
	}
	d := Decide(attempted, err)
	metrics.ReplyDelivered(string(d))
	return d
}
