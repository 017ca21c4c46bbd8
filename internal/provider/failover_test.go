package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"truthline/internal/domain"
)

// mockProvider implements domain.Provider for testing.
type mockProvider struct {
	name     string
	healthy  bool
	chatErr  error
	chatResp *domain.ChatResponse
	calls    int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Healthy(ctx context.Context) error {
	if !m.healthy {
		return errors.New("unhealthy")
	}
	return nil
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.calls++
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	return m.chatResp, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFailoverProvider_UsesFirstProvider(t *testing.T) {
	p1 := &mockProvider{name: "primary", chatResp: &domain.ChatResponse{Content: "from-primary"}}
	p2 := &mockProvider{name: "secondary", chatResp: &domain.ChatResponse{Content: "from-secondary"}}
	fp := NewFailoverProvider([]domain.Provider{p1, p2}, testLogger())

	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from-primary" {
		t.Fatalf("expected 'from-primary', got %q", resp.Content)
	}
	if p2.calls != 0 {
		t.Fatalf("secondary should not be called, got %d calls", p2.calls)
	}
}

func TestFailoverProvider_FallsBackOnError(t *testing.T) {
	p1 := &mockProvider{name: "primary", chatErr: errors.New("api error")}
	p2 := &mockProvider{name: "secondary", chatResp: &domain.ChatResponse{Content: "from-secondary"}}
	fp := NewFailoverProvider([]domain.Provider{p1, p2}, testLogger())

	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from-secondary" {
		t.Fatalf("expected 'from-secondary', got %q", resp.Content)
	}
	if p1.calls != 1 {
		t.Fatalf("primary should be tried exactly once, got %d", p1.calls)
	}
}

func TestFailoverProvider_FallsBackOnEmptyAnswer(t *testing.T) {
	p1 := &mockProvider{name: "primary", chatResp: &domain.ChatResponse{Content: "  \n"}}
	p2 := &mockProvider{name: "secondary", chatResp: &domain.ChatResponse{Content: "answer"}}
	fp := NewFailoverProvider([]domain.Provider{p1, p2}, testLogger())

	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "answer" {
		t.Fatalf("expected 'answer', got %q", resp.Content)
	}
}

func TestFailoverProvider_AllProvidersFail(t *testing.T) {
	last := errors.New("fail 2")
	p1 := &mockProvider{name: "p1", chatErr: errors.New("fail 1")}
	p2 := &mockProvider{name: "p2", chatErr: last}
	fp := NewFailoverProvider([]domain.Provider{p1, p2}, testLogger())

	_, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	if !errors.Is(err, last) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
}

func TestFailoverProvider_EmptyChain(t *testing.T) {
	fp := NewFailoverProvider(nil, testLogger())
	_, err := fp.Chat(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFailoverProvider_Healthy(t *testing.T) {
	fp := NewFailoverProvider([]domain.Provider{
		&mockProvider{name: "sick", healthy: false},
		&mockProvider{name: "well", healthy: true},
	}, testLogger())
	if err := fp.Healthy(context.Background()); err != nil {
		t.Fatalf("expected healthy, got: %v", err)
	}

	fp = NewFailoverProvider([]domain.Provider{
		&mockProvider{name: "sick1"},
		&mockProvider{name: "sick2"},
	}, testLogger())
	if err := fp.Healthy(context.Background()); err == nil {
		t.Fatal("expected unhealthy error")
	}
}

func TestFailoverProvider_Name(t *testing.T) {
	fp := NewFailoverProvider([]domain.Provider{&mockProvider{name: "perplexity"}, &mockProvider{name: "claude"}}, testLogger())
	if name := fp.Name(); name != "failover(perplexity→claude)" {
		t.Fatalf("expected 'failover(perplexity→claude)', got %q", name)
	}
}

func TestTryInOrder_StopsAtFirstSuccess(t *testing.T) {
	var tried []string
	got, err := TryInOrder([]string{"a", "b", "c"}, func(s string) string { return s }, testLogger(), func(s string) (string, error) {
		tried = append(tried, s)
		if s == "a" {
			return "", errors.New("down")
		}
		return s + "-ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "b-ok" {
		t.Fatalf("expected 'b-ok', got %q", got)
	}
	if len(tried) != 2 {
		t.Fatalf("expected 2 attempts, got %v", tried)
	}
}
