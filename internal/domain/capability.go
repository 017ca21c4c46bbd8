package domain

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by adapters whose credentials are absent.
var ErrNotConfigured = errors.New("provider not configured")

// Transcriber turns an audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ImageAnalyzer describes an image as a structured text block.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, image []byte) (string, error)
}

// ContentExtractor retrieves readable content for a URL.
type ContentExtractor interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// RiskScorer returns a human-readable risk narrative for a URL.
type RiskScorer interface {
	Score(ctx context.Context, rawURL string) (string, error)
}

// Synthesizer renders text as audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Name() string
}

// MediaFetcher loads an attachment into memory.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Pusher delivers a payload outside the synchronous reply.
type Pusher interface {
	Push(ctx context.Context, ev InboundEvent, p Payload) error
}
