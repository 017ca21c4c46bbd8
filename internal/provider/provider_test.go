package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truthline/internal/config"
	"truthline/internal/domain"
)

func chatRequest() domain.ChatRequest {
	return domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "is the earth flat?"},
		},
		MaxTokens:   100,
		Temperature: 0.2,
	}
}

func TestOpenAI_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))

		var body oaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sonar", body.Model)
		assert.Len(t, body.Messages, 2)
		assert.False(t, body.Stream)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"STATUS: UNVERIFIED-FAKE\nNo."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{Name: "perplexity", APIKey: "pplx-key", APIBase: srv.URL, Model: "sonar", Logger: testLogger()})
	resp, err := p.Chat(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "perplexity", p.Name())
	assert.Contains(t, resp.Content, "UNVERIFIED-FAKE")
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), chatRequest())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestOpenAI_MissingKey(t *testing.T) {
	p := NewOpenAI(OpenAIConfig{Logger: testLogger()})
	_, err := p.Chat(context.Background(), chatRequest())
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.ErrorIs(t, p.Healthy(context.Background()), domain.ErrNotConfigured)
}

func TestClaude_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))

		var body claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be brief", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)

		w.Write([]byte(`{"content":[{"type":"text","text":"STATUS: UNVERIFIED-FAKE"},{"type":"text","text":"\nIt is round."}],"stop_reason":"end_turn","usage":{"input_tokens":7,"output_tokens":5}}`))
	}))
	defer srv.Close()

	p := NewClaude(ClaudeConfig{APIKey: "sk-ant", APIBase: srv.URL, Logger: testLogger()})
	resp, err := p.Chat(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "STATUS: UNVERIFIED-FAKE\nIt is round.", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestGemini_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "systemInstruction")
		assert.Contains(t, string(body), "is the earth flat?")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"STATUS: UNVERIFIED-FAKE\nRound."}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":9,"candidatesTokenCount":3,"totalTokenCount":12}}`))
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), GeminiConfig{APIKey: "g-key", APIBase: srv.URL + "/", Logger: testLogger()})
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "STATUS: UNVERIFIED-FAKE\nRound.", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestWhisper_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3-turbo", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "voice.ogg", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "OggS", string(data))

		w.Write([]byte(`{"text":"  Lemon water cures cancer. ","language":"en"}`))
	}))
	defer srv.Close()

	p := NewWhisperProvider(WhisperConfig{APIBase: srv.URL, APIKey: "gsk", Language: "en", Logger: testLogger()})
	text, err := p.Transcribe(context.Background(), []byte("OggS"), "voice.ogg")
	require.NoError(t, err)
	assert.Equal(t, "Lemon water cures cancer.", text)
}

func TestWhisper_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWhisperProvider(WhisperConfig{APIBase: srv.URL, APIKey: "gsk", Logger: testLogger()})
	_, err := p.Transcribe(context.Background(), []byte("x"), "voice.ogg")
	assert.ErrorContains(t, err, "400")
}

func TestTTS_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, `He said "no".`, body["input"])
		assert.Equal(t, "alloy", body["voice"])
		w.Write([]byte("ID3-mp3"))
	}))
	defer srv.Close()

	p := NewTTSProvider(TTSConfig{Provider: "openai", APIBase: srv.URL, APIKey: "sk", Logger: testLogger()})
	audio, err := p.Synthesize(context.Background(), `He said "no".`)
	require.NoError(t, err)
	assert.Equal(t, "ID3-mp3", string(audio))
	assert.Equal(t, "openai", p.Name())
}

func TestTTS_ElevenLabs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "xi", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		w.Write([]byte("ID3-eleven"))
	}))
	defer srv.Close()

	p := NewTTSProvider(TTSConfig{Provider: "elevenlabs", APIBase: srv.URL, APIKey: "xi", Voice: "voice-1", Logger: testLogger()})
	audio, err := p.Synthesize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ID3-eleven", string(audio))
}

func TestTTS_EmptyAudioIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := NewTTSProvider(TTSConfig{APIBase: srv.URL, APIKey: "sk", Logger: testLogger()})
	_, err := p.Synthesize(context.Background(), "hello")
	assert.Error(t, err)
}

func visionServer(t *testing.T, failing string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images:annotate", r.URL.Path)
		assert.Equal(t, "v-key", r.URL.Query().Get("key"))

		var req visionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		require.Len(t, req.Requests[0].Features, 1)
		feature := req.Requests[0].Features[0].Type
		if feature == failing {
			http.Error(w, "quota", http.StatusTooManyRequests)
			return
		}
		switch feature {
		case "TEXT_DETECTION":
			w.Write([]byte(`{"responses":[{"textAnnotations":[{"description":"BREAKING: aliens land\n"},{"description":"BREAKING:"}]}]}`))
		case "LABEL_DETECTION":
			w.Write([]byte(`{"responses":[{"labelAnnotations":[
				{"description":"Font","score":0.88},{"description":"Screenshot","score":0.97},
				{"description":"Sky","score":0.5},{"description":"Cloud","score":0.45},
				{"description":"Text","score":0.91},{"description":"Blue","score":0.2}]}]}`))
		case "OBJECT_LOCALIZATION":
			w.Write([]byte(`{"responses":[{"localizedObjectAnnotations":[
				{"name":"Person","score":0.81},{"name":"Car","score":0.92},
				{"name":"Tree","score":0.6},{"name":"Dog","score":0.3}]}]}`))
		}
	}))
}

func TestVision_AnalyzeOrdersSections(t *testing.T) {
	srv := visionServer(t, "")
	defer srv.Close()

	p := NewVisionProvider(VisionConfig{APIBase: srv.URL, APIKey: "v-key", Logger: testLogger()})
	out, err := p.Analyze(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t,
		"Text found in image:\nBREAKING: aliens land\n\n"+
			"Detected concepts: Screenshot (97%), Text (91%), Font (88%), Sky (50%), Cloud (45%)\n\n"+
			"Objects detected: Car (92%), Person (81%), Tree (60%)",
		out)
}

func TestVision_MissingSectionOmitted(t *testing.T) {
	srv := visionServer(t, "LABEL_DETECTION")
	defer srv.Close()

	p := NewVisionProvider(VisionConfig{APIBase: srv.URL, APIKey: "v-key", Logger: testLogger()})
	out, err := p.Analyze(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.NotContains(t, out, "Detected concepts")
	assert.Contains(t, out, "Text found in image")
	assert.Contains(t, out, "Objects detected")
}

func TestVision_AllFeaturesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewVisionProvider(VisionConfig{APIBase: srv.URL, APIKey: "v-key", Logger: testLogger()})
	out, err := p.Analyze(context.Background(), []byte("png"))
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestRisk_Score(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		assert.Equal(t, "1", r.URL.Query().Get("strictness"))
		w.Write([]byte(`{"success":true,"domain":"example.com","risk_score":85,"unsafe":true,"phishing":true,"suspicious":true}`))
	}))
	defer srv.Close()

	p := NewRiskProvider(RiskConfig{APIBase: srv.URL, APIKey: "ipq", Strictness: 1, Logger: testLogger()})
	got, err := p.Score(context.Background(), "https://example.com/scam")
	require.NoError(t, err)
	assert.Equal(t, "Risk score 85/100 for example.com (phishing, suspicious)", got)
	assert.Equal(t, "/ipq/https:%2F%2Fexample.com%2Fscam", gotPath)
}

func TestRisk_Clean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"domain":"who.int","risk_score":0}`))
	}))
	defer srv.Close()

	p := NewRiskProvider(RiskConfig{APIBase: srv.URL, APIKey: "ipq", Logger: testLogger()})
	got, err := p.Score(context.Background(), "https://who.int")
	require.NoError(t, err)
	assert.Equal(t, "Risk score 0/100 for who.int (no threats flagged)", got)
}

func TestRisk_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	p := NewRiskProvider(RiskConfig{APIBase: srv.URL, APIKey: "bad", Logger: testLogger()})
	_, err := p.Score(context.Background(), "https://example.com")
	assert.ErrorContains(t, err, "Invalid key")
}

func TestFactory_ReasoningChain(t *testing.T) {
	cfg := config.Defaults()
	cfg.Reasoning.Providers = map[string]config.ProviderConfig{
		"perplexity": {Kind: "openai", APIBase: "https://api.perplexity.ai", APIKey: "k1", Model: "sonar"},
		"claude":     {Kind: "claude", APIKey: "k2"},
	}
	cfg.Reasoning.Failover = []string{"perplexity", "claude"}

	f := NewFactory(cfg, testLogger())
	p, err := f.Reasoning()
	require.NoError(t, err)
	assert.Equal(t, "failover(perplexity→claude)", p.Name())

	again, err := f.Get("perplexity")
	require.NoError(t, err)
	first, _ := f.Get("perplexity")
	assert.Same(t, first, again)
}

func TestFactory_SingleProviderIsNotWrapped(t *testing.T) {
	cfg := config.Defaults()
	f := NewFactory(cfg, testLogger())
	p, err := f.Reasoning()
	require.NoError(t, err)
	assert.Equal(t, "perplexity", p.Name())
}

func TestFactory_SkipsBrokenProviders(t *testing.T) {
	cfg := config.Defaults()
	cfg.Reasoning.Providers["gemini"] = config.ProviderConfig{Kind: "gemini"} // no key
	cfg.Reasoning.Failover = []string{"gemini"}

	_, err := NewFactory(cfg, testLogger()).Reasoning()
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestFactory_Synthesizers(t *testing.T) {
	cfg := config.Defaults()
	assert.Empty(t, NewFactory(cfg, testLogger()).Synthesizers())

	cfg.TTS.Primary = config.SynthConfig{Provider: "elevenlabs", APIKey: "xi"}
	cfg.TTS.Secondary = config.SynthConfig{Provider: "openai", APIKey: "sk"}
	synths := NewFactory(cfg, testLogger()).Synthesizers()
	require.Len(t, synths, 2)
	assert.Equal(t, "elevenlabs", synths[0].Name())
	assert.Equal(t, "openai", synths[1].Name())
}
