package channel

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"truthline/internal/domain"
	"truthline/internal/sanitize"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePipeline struct {
	mu       sync.Mutex
	payload  domain.Payload
	events   []domain.InboundEvent
	profiles []string
}

func (f *fakePipeline) Process(ctx context.Context, ev domain.InboundEvent, p sanitize.Profile) domain.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.profiles = append(f.profiles, p.Name)
	return f.payload
}

type fakeDelivery struct {
	decision domain.Decision
	calls    int
}

func (f *fakeDelivery) Deliver(ctx context.Context, ev domain.InboundEvent, p domain.Payload) domain.Decision {
	f.calls++
	return f.decision
}
