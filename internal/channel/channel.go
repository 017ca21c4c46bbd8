// Package channel adapts messaging transports to the fact-check pipeline.
package channel

import (
	"context"

	"truthline/internal/domain"
	"truthline/internal/sanitize"
)

// Processor turns one inbound event into a bounded reply.
type Processor interface {
	Process(ctx context.Context, ev domain.InboundEvent, profile sanitize.Profile) domain.Payload
}

// Deliverer chooses the single path a reply takes.
type Deliverer interface {
	Deliver(ctx context.Context, ev domain.InboundEvent, p domain.Payload) domain.Decision
}
