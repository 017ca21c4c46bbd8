package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthline/internal/domain"
	"truthline/internal/sanitize"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChecker struct {
	ev      domain.InboundEvent
	profile sanitize.Profile
}

func (f *fakeChecker) Process(ctx context.Context, ev domain.InboundEvent, p sanitize.Profile) domain.Payload {
	f.ev = ev
	f.profile = p
	return domain.Payload{Text: "✅ VERIFIED", Verdict: domain.VerdictVerified, Kind: domain.KindText}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := New(Config{Logger: quietLogger()})

	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Greater(t, got.Goroutines, 0)

	rec = do(t, s.Handler(), http.MethodHead, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := New(Config{Logger: quietLogger()})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "truthline_uptime_seconds")
}

func TestAudioStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reply-1-abc.mp3"), []byte("ID3"), 0o644))
	s := New(Config{AudioDir: dir, Logger: quietLogger()})

	rec := do(t, s.Handler(), http.MethodGet, "/audio/reply-1-abc.mp3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ID3", rec.Body.String())

	rec = do(t, s.Handler(), http.MethodGet, "/audio/missing.mp3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugCheck(t *testing.T) {
	checker := &fakeChecker{}
	s := New(Config{
		Logger: quietLogger(),
		Routes: []Registrar{NewDebugHandler(checker, map[string]sanitize.Profile{
			"twilio":   sanitize.Twilio,
			"telegram": sanitize.Telegram,
		})},
	})

	rec := do(t, s.Handler(), http.MethodPost, "/debug/check", `{"text":"lemon cures cancer","transport":"telegram"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.KindText, got.Kind)
	assert.Equal(t, domain.VerdictVerified, got.Verdict)
	assert.Equal(t, domain.DecisionSyncReply, got.Decision)
	assert.Equal(t, "lemon cures cancer", checker.ev.Text)
	assert.Equal(t, "telegram", checker.profile.Name)

	rec = do(t, s.Handler(), http.MethodPost, "/debug/check", `{"text":"x","transport":"carrier-pigeon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugDisabledByDefault(t *testing.T) {
	s := New(Config{Logger: quietLogger()})
	rec := do(t, s.Handler(), http.MethodPost, "/debug/check", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
