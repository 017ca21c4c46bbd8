package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"truthline/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	mu     sync.Mutex
	answer string
	err    error
	reqs   []domain.ChatRequest
}

func (f *fakeProvider) Name() string                      { return "fake" }
func (f *fakeProvider) Healthy(ctx context.Context) error { return nil }

func (f *fakeProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Content: f.answer, FinishReason: "stop"}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeProvider) lastUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.reqs[len(f.reqs)-1].Messages
	return msgs[len(msgs)-1].Content
}

type fakeTranscriber struct {
	text     string
	err      error
	filename string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	f.filename = filename
	return f.text, f.err
}

type fakeImages struct {
	text string
	err  error
}

func (f *fakeImages) Analyze(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}

type fakeFetcher struct {
	data []byte
	err  error
	refs []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	f.refs = append(f.refs, ref)
	return f.data, f.err
}

type fakeExtractor struct {
	content string
	err     error
	urls    []string
}

func (f *fakeExtractor) Extract(ctx context.Context, rawURL string) (string, error) {
	f.urls = append(f.urls, rawURL)
	return f.content, f.err
}

type fakeRisk struct {
	narrative string
	err       error
	urls      []string
}

func (f *fakeRisk) Score(ctx context.Context, rawURL string) (string, error) {
	f.urls = append(f.urls, rawURL)
	return f.narrative, f.err
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f *fakeSynth) Name() string { return "fake-tts" }

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type fakePusher struct {
	err   error
	calls int
	last  domain.Payload
}

func (f *fakePusher) Push(ctx context.Context, ev domain.InboundEvent, p domain.Payload) error {
	f.calls++
	f.last = p
	return f.err
}
