package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthline/internal/domain"
	"truthline/internal/media"
	"truthline/internal/sanitize"
	"truthline/internal/speech"
)

type harness struct {
	reasoning   *fakeProvider
	transcriber *fakeTranscriber
	images      *fakeImages
	fetcher     *fakeFetcher
	extractor   *fakeExtractor
	risk        *fakeRisk
	synth       *fakeSynth
}

func newHarness() *harness {
	return &harness{
		reasoning:   &fakeProvider{answer: "STATUS: UNVERIFIED-FAKE\n\n**No evidence** supports this [1].\n\n## Sources\n- WHO"},
		transcriber: &fakeTranscriber{text: "Drinking lemon water cures cancer"},
		images:      &fakeImages{text: "Text found in image:\nFREE MONEY"},
		fetcher:     &fakeFetcher{data: []byte("media")},
		extractor:   &fakeExtractor{content: "Page says: win a prize"},
		risk:        &fakeRisk{narrative: "Risk score 85/100 for example.com (phishing)"},
		synth:       &fakeSynth{audio: []byte("mp3")},
	}
}

func (h *harness) pipeline(t *testing.T, publicURL string) *Pipeline {
	t.Helper()
	store, err := speech.NewStore(t.TempDir(), publicURL)
	require.NoError(t, err)
	return New(Config{
		Reasoning:   h.reasoning,
		Transcriber: h.transcriber,
		Images:      h.images,
		Extractor:   h.extractor,
		Risk:        h.risk,
		Speech:      speech.NewAdapter(speech.AdapterConfig{Synth: h.synth, Store: store, Logger: quietLogger()}),
		Fetchers:    map[string]domain.MediaFetcher{"twilio": h.fetcher},
		Language:    "English",
		Logger:      quietLogger(),
	})
}

func startsWithMarker(s string) bool {
	for _, v := range domain.Verdicts {
		if strings.HasPrefix(s, v.Marker()) {
			return true
		}
	}
	return false
}

func TestProcess_NoInput(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "https://bot.example.com")

	for _, ev := range []domain.InboundEvent{
		{Transport: "twilio"},
		{Transport: "twilio", Text: "   \n"},
		{Transport: "twilio", ContentType: "application/pdf"},
	} {
		out := p.Process(context.Background(), ev, sanitize.Twilio)
		assert.Equal(t, sanitize.Clean(NoticeEmpty, sanitize.Twilio), out.Text)
		assert.Empty(t, out.AudioURL)
	}
	assert.Equal(t, 0, h.reasoning.calls())
}

func TestProcess_TextClaim(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio",
		Text:      "Drinking lemon water cures cancer",
	}, sanitize.Twilio)

	assert.True(t, startsWithMarker(out.Text), out.Text)
	assert.Equal(t, domain.VerdictFake, out.Verdict)
	assert.NotContains(t, out.Text, "**")
	assert.NotContains(t, out.Text, "#")
	assert.NotContains(t, out.Text, "[1]")
	assert.Empty(t, out.AudioURL, "text input never gets audio")
	assert.Empty(t, out.URL)
	assert.Empty(t, h.risk.urls)
	assert.Contains(t, h.reasoning.lastUser(), "Drinking lemon water cures cancer")
}

func TestProcess_URLEnrichedOnce(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio",
		Text:      "Is this legit? https://example.com/scam and also https://other.example/",
	}, sanitize.Twilio)

	assert.Equal(t, []string{"https://example.com/scam"}, h.risk.urls)
	assert.Equal(t, []string{"https://example.com/scam"}, h.extractor.urls)
	user := h.reasoning.lastUser()
	assert.Contains(t, user, "URL risk signal: Risk score 85/100 for example.com (phishing)")
	assert.Contains(t, user, "Linked content (https://example.com/scam):\nPage says: win a prize")
	assert.Equal(t, "https://example.com/scam", out.URL)
}

func TestProcess_EnrichmentFailuresDegrade(t *testing.T) {
	h := newHarness()
	h.risk.err = errors.New("quota exceeded")
	h.extractor.err = errors.New("blocked")
	p := h.pipeline(t, "")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio",
		Text:      "https://example.com/scam",
	}, sanitize.Twilio)

	require.Equal(t, 1, h.reasoning.calls())
	user := h.reasoning.lastUser()
	assert.Contains(t, user, "URL risk signal: "+RiskUnknown)
	assert.Contains(t, user, "https://example.com/scam")
	assert.NotContains(t, user, "Linked content")
	assert.True(t, startsWithMarker(out.Text))
}

func TestProcess_AudioEmptyTranscript(t *testing.T) {
	h := newHarness()
	h.transcriber.text = ""
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport:   "twilio",
		ContentType: "audio/ogg",
		MediaRef:    "https://api.twilio.com/media/1",
	}, sanitize.Twilio)

	assert.Equal(t, sanitize.Clean(NoticeRetryAudio, sanitize.Twilio), out.Text)
	assert.Equal(t, 0, h.reasoning.calls())
	assert.Empty(t, out.AudioURL)
}

func TestProcess_AudioTranscriberErrorIsRetry(t *testing.T) {
	h := newHarness()
	h.transcriber.err = errors.New("500")
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio", ContentType: "audio/ogg", MediaRef: "ref",
	}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeRetryAudio, sanitize.Twilio), out.Text)
	assert.Equal(t, 0, h.reasoning.calls())
}

func TestProcess_AudioGetsVoiceReply(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport:   "twilio",
		Text:        "my aunt sent this",
		ContentType: "audio/mpeg",
		MediaRef:    "https://api.twilio.com/media/2",
	}, sanitize.Twilio)

	assert.Equal(t, []string{"https://api.twilio.com/media/2"}, h.fetcher.refs)
	assert.Equal(t, "voice.mp3", h.transcriber.filename)
	assert.Contains(t, h.reasoning.lastUser(), "Drinking lemon water cures cancer\n\nUser note: my aunt sent this")
	assert.NotEmpty(t, out.Text)
	assert.True(t, strings.HasPrefix(out.AudioURL, "https://bot.example.com/audio/"))
	assert.True(t, strings.HasPrefix(out.Speech, "This claim appears to be false."))
}

func TestProcess_AudioSynthesisFailureIsTextOnly(t *testing.T) {
	h := newHarness()
	h.synth.err = errors.New("tts down")
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio", ContentType: "audio/ogg", MediaRef: "ref",
	}, sanitize.Twilio)
	assert.True(t, startsWithMarker(out.Text))
	assert.Empty(t, out.AudioURL)
}

func TestProcess_Image(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "https://bot.example.com")

	out := p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio", ContentType: "image/jpeg", MediaRef: "ref",
	}, sanitize.Twilio)
	assert.Contains(t, h.reasoning.lastUser(), "FREE MONEY")
	assert.True(t, startsWithMarker(out.Text))
	assert.Empty(t, out.AudioURL, "image input never gets audio")

	h.images.text = ""
	out = p.Process(context.Background(), domain.InboundEvent{
		Transport: "twilio", ContentType: "image/png", MediaRef: "ref",
	}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeRetryImage, sanitize.Twilio), out.Text)
}

func TestProcess_FetchFailures(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "")
	ev := domain.InboundEvent{Transport: "twilio", ContentType: "audio/ogg", MediaRef: "ref"}

	h.fetcher.err = &media.FetchError{Status: 404}
	out := p.Process(context.Background(), ev, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeFetchFailed, sanitize.Twilio), out.Text)

	h.fetcher.err = media.ErrCredentialsMissing
	out = p.Process(context.Background(), ev, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeNotConfigured, sanitize.Twilio), out.Text)

	ev.Transport = "telegram"
	out = p.Process(context.Background(), ev, sanitize.Telegram)
	assert.Equal(t, NoticeNotConfigured, out.Text)
	assert.Equal(t, 0, h.reasoning.calls())
}

func TestProcess_NoReasoningProvider(t *testing.T) {
	p := New(Config{Logger: quietLogger()})
	out := p.Process(context.Background(), domain.InboundEvent{Transport: "twilio", Text: "claim"}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeNotConfigured, sanitize.Twilio), out.Text)
}

func TestProcess_ReasoningFailure(t *testing.T) {
	h := newHarness()
	h.reasoning.err = errors.New("openai status 500: internal error")
	p := h.pipeline(t, "")

	out := p.Process(context.Background(), domain.InboundEvent{Transport: "twilio", Text: "claim"}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeReasoning, sanitize.Twilio), out.Text)
	assert.NotContains(t, out.Text, "500")

	h.reasoning.err = nil
	h.reasoning.answer = "   "
	out = p.Process(context.Background(), domain.InboundEvent{Transport: "twilio", Text: "claim"}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeReasoning, sanitize.Twilio), out.Text)

	h.reasoning.err = fmt.Errorf("perplexity: %w", domain.ErrNotConfigured)
	out = p.Process(context.Background(), domain.InboundEvent{Transport: "twilio", Text: "claim"}, sanitize.Twilio)
	assert.Equal(t, sanitize.Clean(NoticeNotConfigured, sanitize.Twilio), out.Text)
}

func TestProcess_LongAnswerBounded(t *testing.T) {
	h := newHarness()
	var b strings.Builder
	b.WriteString("STATUS: PARTIALLY-TRUE\n\n")
	for b.Len() < 5000 {
		b.WriteString("Some **context** about the claim & its origins <sources>.\n")
	}
	h.reasoning.answer = b.String()
	p := h.pipeline(t, "")

	out := p.Process(context.Background(), domain.InboundEvent{Transport: "twilio", Text: "claim"}, sanitize.Twilio)
	assert.LessOrEqual(t, sanitize.Len(out.Text), sanitize.Twilio.Limit)
	assert.True(t, strings.HasPrefix(out.Text, domain.VerdictPartiallyTrue.Marker()))
	assert.True(t, strings.HasSuffix(out.Text, sanitize.DefaultNotice))
	assert.NotContains(t, out.Text, "<sources>")
}

func TestProcess_PromptCeilingFollowsProfile(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, "")
	p.Process(context.Background(), domain.InboundEvent{Transport: "telegram", Text: "claim"}, sanitize.Telegram)
	system := h.reasoning.reqs[0].Messages[0].Content
	assert.Contains(t, system, "under 3000 characters")
	assert.Contains(t, system, "Write only in English")
}

func TestAudioFilename(t *testing.T) {
	assert.Equal(t, "voice.ogg", audioFilename("audio/ogg; codecs=opus"))
	assert.Equal(t, "voice.amr", audioFilename("audio/amr"))
	assert.Equal(t, "voice.ogg", audioFilename("audio/unknown"))
}
