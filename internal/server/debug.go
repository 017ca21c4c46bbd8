package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"truthline/internal/domain"
	"truthline/internal/pipeline"
	"truthline/internal/sanitize"
)

// Checker runs the pipeline for one event.
type Checker interface {
	Process(ctx context.Context, ev domain.InboundEvent, profile sanitize.Profile) domain.Payload
}

// DebugHandler exposes the pipeline as JSON for manual testing. It never
// delivers anything to a transport.
type DebugHandler struct {
	checker  Checker
	profiles map[string]sanitize.Profile
}

func NewDebugHandler(checker Checker, profiles map[string]sanitize.Profile) *DebugHandler {
	return &DebugHandler{checker: checker, profiles: profiles}
}

func (h *DebugHandler) Register(e *echo.Echo) {
	e.POST("/debug/check", h.Check)
}

type CheckRequest struct {
	Text        string `json:"text"`
	Transport   string `json:"transport"`
	ContentType string `json:"content_type"`
	MediaRef    string `json:"media_ref"`
}

type CheckResponse struct {
	Kind     domain.InputKind `json:"kind"`
	Verdict  domain.Verdict   `json:"verdict,omitempty"`
	Text     string           `json:"text"`
	AudioURL string           `json:"audio_url,omitempty"`
	Decision domain.Decision  `json:"decision"`
}

func (h *DebugHandler) Check(c echo.Context) error {
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	transport := strings.ToLower(req.Transport)
	if transport == "" {
		transport = "twilio"
	}
	profile, ok := h.profiles[transport]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown transport: "+req.Transport)
	}

	p := h.checker.Process(c.Request().Context(), domain.InboundEvent{
		Transport:   transport,
		Text:        req.Text,
		ContentType: req.ContentType,
		MediaRef:    req.MediaRef,
	}, profile)

	return c.JSON(http.StatusOK, CheckResponse{
		Kind:     p.Kind,
		Verdict:  p.Verdict,
		Text:     p.Text,
		AudioURL: p.AudioURL,
		Decision: pipeline.Decide(false, nil),
	})
}
