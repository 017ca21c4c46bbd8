package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"truthline/internal/channel"
	"truthline/internal/domain"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var (
		transport string
		mediaURL  string
		mediaType string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "check [text]",
		Short: "Fact-check one message from the terminal",
		Long: "Runs the full pipeline on a message and prints the reply the chosen transport would receive.\n" +
			"Nothing is sent: delivery always behaves as a synchronous reply.",
		Example: `  truthline check "Drinking hot water cures the flu"
  truthline check --transport telegram "https://example.com/story"
  truthline check --media-url https://api.twilio.com/.../Media/ME123 --media-type audio/ogg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			profile, ok := a.profiles[transport]
			if !ok {
				return fmt.Errorf("unknown transport %q (want %s or %s)", transport, channel.TwilioTransport, channel.TelegramTransport)
			}
			ev := domain.InboundEvent{
				Transport:   transport,
				Text:        strings.Join(args, " "),
				ContentType: mediaType,
				MediaRef:    mediaURL,
				From:        "cli",
			}
			p := a.pipeline.Process(ctx, ev, profile)

			text := p.Text
			if profile.Escape != nil {
				text = html.UnescapeString(text)
			}
			if asJSON {
				data, _ := json.MarshalIndent(map[string]any{
					"kind":      p.Kind,
					"verdict":   p.Verdict,
					"text":      text,
					"audio_url": p.AudioURL,
					"url":       p.URL,
				}, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			if p.Verdict != "" {
				fmt.Printf("verdict: %s\n\n", p.Verdict)
			}
			fmt.Println(text)
			if p.AudioURL != "" {
				fmt.Printf("\naudio: %s\n", p.AudioURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&transport, "transport", "t", channel.TwilioTransport, "reply profile to render for (twilio, telegram)")
	cmd.Flags().StringVar(&mediaURL, "media-url", "", "attachment reference (Twilio media URL or Telegram file ID)")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "declared attachment content type, e.g. audio/ogg or image/jpeg")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the payload as JSON")
	return cmd
}
