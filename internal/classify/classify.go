// Package classify decides which normalizer an inbound event needs.
package classify

import (
	"strings"

	"truthline/internal/domain"
)

// Classify looks only at the declared media type of the first attachment
// and whether body text is present. Undeclared or unsupported media fall
// back to the body text.
func Classify(ev domain.InboundEvent) domain.InputKind {
	switch ev.Attachment() {
	case domain.AttachmentAudio:
		if ev.MediaRef != "" {
			return domain.KindAudio
		}
	case domain.AttachmentImage:
		if ev.MediaRef != "" {
			return domain.KindImage
		}
	}
	if strings.TrimSpace(ev.Text) != "" {
		return domain.KindText
	}
	return domain.KindNone
}
