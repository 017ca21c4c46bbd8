package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"truthline/internal/domain"
	"truthline/internal/metrics"
	"truthline/internal/sanitize"
)

const (
	TelegramTransport      = "telegram"
	telegramMaxSendRetries = 2
	telegramSecretHeader   = "X-Telegram-Bot-Api-Secret-Token"
)

const telegramIntro = "👋 Hi! Forward me a message, a link, a screenshot or a voice note and I will tell you whether it holds up."

// Sender is the part of *tgbotapi.BotAPI used for replies.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramConfig configures the Telegram webhook.
type TelegramConfig struct {
	Path          string // default /telegram/webhook
	Bot           Sender
	Pipeline      Processor
	Profile       sanitize.Profile
	WebhookSecret string
	Logger        *slog.Logger
}

// Telegram receives bot updates by webhook and replies through the bot API.
// Updates are acknowledged at once and processed in the background.
type Telegram struct {
	path     string
	bot      Sender
	pipeline Processor
	profile  sanitize.Profile
	secret   string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Path == "" {
		cfg.Path = "/telegram/webhook"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = sanitize.Telegram
	}
	return &Telegram{
		path:     cfg.Path,
		bot:      cfg.Bot,
		pipeline: cfg.Pipeline,
		profile:  cfg.Profile,
		secret:   cfg.WebhookSecret,
		logger:   cfg.Logger,
	}
}

func (t *Telegram) Name() string { return TelegramTransport }

func (t *Telegram) Register(e *echo.Echo) {
	e.POST(t.path, t.handle)
}

// Wait blocks until in-flight updates are answered.
func (t *Telegram) Wait() { t.wg.Wait() }

func (t *Telegram) handle(c echo.Context) error {
	if t.secret != "" {
		got := c.Request().Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(t.secret)) != 1 {
			t.logger.Warn("telegram webhook secret mismatch")
			return echo.NewHTTPError(http.StatusForbidden, "invalid secret")
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return c.NoContent(http.StatusOK)
	}

	ctx := context.WithoutCancel(c.Request().Context())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.handleMessage(ctx, msg)
	}()
	return c.NoContent(http.StatusOK)
}

func (t *Telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			t.send(chatID, tgbotapi.NewMessage(chatID, telegramIntro))
		}
		return
	}

	ev := EventFromMessage(msg)
	t.logger.Info("telegram message received",
		"chat_id", chatID,
		"text_len", len(ev.Text),
		"content_type", ev.ContentType,
	)
	// sendChatAction answers true, not a Message, so it goes through Request.
	if _, err := t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		t.logger.Debug("telegram typing action failed", "chat_id", chatID, "err", err)
	}

	payload := t.pipeline.Process(ctx, ev, t.profile)
	t.Reply(chatID, payload)
}

// Reply sends the text, then the voice note when one was produced.
func (t *Telegram) Reply(chatID int64, p domain.Payload) {
	reply := tgbotapi.NewMessage(chatID, p.Text)
	reply.DisableWebPagePreview = true
	if err := t.send(chatID, reply); err != nil {
		t.logger.Error("telegram reply failed", "chat_id", chatID, "err", err)
		return
	}
	metrics.ReplyDelivered(string(domain.DecisionSyncReply))

	if p.AudioURL != "" {
		if err := t.send(chatID, tgbotapi.NewVoice(chatID, tgbotapi.FileURL(p.AudioURL))); err != nil {
			t.logger.Warn("telegram voice failed", "chat_id", chatID, "err", err)
		}
	}
}

// send retries rate-limited and transient failures a few times.
func (t *Telegram) send(chatID int64, c tgbotapi.Chattable) error {
	var err error
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		if _, err = t.bot.Send(c); err == nil {
			return nil
		}
		wait := time.Duration(attempt+1) * time.Second
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			if apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			} else if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
				return err
			}
		}
		if attempt < telegramMaxSendRetries {
			t.logger.Warn("telegram send error, retrying", "chat_id", chatID, "err", err, "backoff", wait)
			time.Sleep(wait)
		}
	}
	return fmt.Errorf("telegram send after %d attempts: %w", telegramMaxSendRetries+1, err)
}

// EventFromMessage maps a Telegram message to an inbound event. Voice,
// audio, photo and image documents are recognised; the caption is the text.
func EventFromMessage(msg *tgbotapi.Message) domain.InboundEvent {
	ev := domain.InboundEvent{
		Transport: TelegramTransport,
		Text:      msg.Text,
		From:      strconv.FormatInt(msg.Chat.ID, 10),
	}
	if ev.Text == "" {
		ev.Text = msg.Caption
	}

	switch {
	case msg.Voice != nil:
		ev.ContentType = orDefault(msg.Voice.MimeType, "audio/ogg")
		ev.MediaRef = msg.Voice.FileID
	case msg.Audio != nil:
		ev.ContentType = orDefault(msg.Audio.MimeType, "audio/mpeg")
		ev.MediaRef = msg.Audio.FileID
	case len(msg.Photo) > 0:
		// Sizes are ordered smallest first.
		ev.ContentType = "image/jpeg"
		ev.MediaRef = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		ev.ContentType = msg.Document.MimeType
		ev.MediaRef = msg.Document.FileID
	}
	return ev
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
