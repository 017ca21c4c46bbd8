package channel

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"truthline/internal/domain"
	"truthline/internal/sanitize"
)

const TwilioTransport = "twilio"

// TwilioConfig configures the Twilio messaging webhook.
type TwilioConfig struct {
	Path              string // default /webhook
	Pipeline          Processor
	Delivery          Deliverer
	Profile           sanitize.Profile
	AuthToken         string
	ValidateSignature bool
	PublicBaseURL     string // used to rebuild the signed URL behind proxies
	Logger            *slog.Logger
}

// Twilio receives form-encoded Twilio webhooks and answers with TwiML.
type Twilio struct {
	path      string
	pipeline  Processor
	delivery  Deliverer
	profile   sanitize.Profile
	validator *twclient.RequestValidator
	baseURL   string
	logger    *slog.Logger
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = sanitize.Twilio
	}
	t := &Twilio{
		path:     cfg.Path,
		pipeline: cfg.Pipeline,
		delivery: cfg.Delivery,
		profile:  cfg.Profile,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:   cfg.Logger,
	}
	if cfg.ValidateSignature && cfg.AuthToken != "" {
		v := twclient.NewRequestValidator(cfg.AuthToken)
		t.validator = &v
	}
	return t
}

func (t *Twilio) Name() string { return TwilioTransport }

// Register mounts the webhook route.
func (t *Twilio) Register(e *echo.Echo) {
	e.POST(t.path, t.handle)
}

func (t *Twilio) handle(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}

	if t.validator != nil {
		sig := c.Request().Header.Get("X-Twilio-Signature")
		if !t.validator.Validate(t.signedURL(c.Request()), flatten(form), sig) {
			t.logger.Warn("twilio signature rejected", "path", c.Path())
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	ev := EventFromForm(form)
	t.logger.Info("twilio message received",
		"from", ev.From,
		"text_len", len(ev.Text),
		"content_type", ev.ContentType,
	)

	// Provider calls outlive the inbound request if Twilio gives up waiting.
	ctx := context.WithoutCancel(c.Request().Context())
	payload := t.pipeline.Process(ctx, ev, t.profile)

	if t.delivery != nil && t.delivery.Deliver(ctx, ev, payload) == domain.DecisionPushed {
		return twiml(c, nil)
	}
	return twiml(c, &twimlMessage{
		Body:  twimlBody{Text: payload.Text},
		Media: payload.AudioURL,
	})
}

func (t *Twilio) signedURL(r *http.Request) string {
	if t.baseURL != "" {
		return t.baseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// EventFromForm reads a Twilio messaging webhook. Only the first
// attachment is considered.
func EventFromForm(form url.Values) domain.InboundEvent {
	ev := domain.InboundEvent{
		Transport: TwilioTransport,
		Text:      form.Get("Body"),
		From:      form.Get("From"),
		To:        form.Get("To"),
	}
	if n, _ := strconv.Atoi(form.Get("NumMedia")); n > 0 {
		ev.ContentType = form.Get("MediaContentType0")
		ev.MediaRef = form.Get("MediaUrl0")
	}
	return ev
}

func flatten(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Message *twimlMessage `xml:"Message,omitempty"`
}

type twimlMessage struct {
	Body  twimlBody `xml:"Body"`
	Media string    `xml:"Media,omitempty"`
}

// twimlBody carries text that the sanitizer has already escaped.
type twimlBody struct {
	Text string `xml:",innerxml"`
}

func twiml(c echo.Context, msg *twimlMessage) error {
	out, err := xml.Marshal(twimlResponse{Message: msg})
	if err != nil {
		return fmt.Errorf("encode twiml: %w", err)
	}
	return c.XMLBlob(http.StatusOK, append([]byte(xml.Header), out...))
}

// TwilioPusherConfig configures the REST send path.
type TwilioPusherConfig struct {
	AccountSID string
	AuthToken  string
	From       string // sender override, defaults to the event's To
	Logger     *slog.Logger
}

// TwilioPusher sends replies through the Twilio Messages API.
type TwilioPusher struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

func NewTwilioPusher(cfg TwilioPusherConfig) (*TwilioPusher, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio push: %w", domain.ErrNotConfigured)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioPusher{client: client, from: cfg.From, logger: cfg.Logger}, nil
}

func (p *TwilioPusher) Push(ctx context.Context, ev domain.InboundEvent, payload domain.Payload) error {
	from := p.from
	if from == "" {
		from = ev.To
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(ev.From)
	params.SetFrom(from)
	// The REST API takes raw text, the payload is escaped for TwiML.
	params.SetBody(html.UnescapeString(payload.Text))
	if payload.AudioURL != "" {
		params.SetMediaUrl([]string{payload.AudioURL})
	}

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := p.client.Api.CreateMessage(params)
		r := result{err: err}
		if err == nil && resp.Sid != nil {
			r.sid = *resp.Sid
		}
		done <- r
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio push: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("twilio push: %w", r.err)
		}
		p.logger.Info("twilio push sent", "to", ev.From, "sid", r.sid)
		return nil
	}
}
