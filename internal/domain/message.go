package domain

import "strings"

// InputKind is the classified shape of one inbound event.
type InputKind string

const (
	KindText  InputKind = "text"
	KindAudio InputKind = "audio"
	KindImage InputKind = "image"
	KindNone  InputKind = "none"
)

// AttachmentKind is the declared media class of the first attachment.
type AttachmentKind string

const (
	AttachmentNone  AttachmentKind = "none"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentImage AttachmentKind = "image"
	AttachmentOther AttachmentKind = "other"
)

// InboundEvent is one user message as delivered by a transport.
// It is built once at webhook entry and not modified afterwards.
type InboundEvent struct {
	Transport   string // twilio | telegram | cli
	Text        string
	ContentType string // declared media type of the first attachment
	MediaRef    string // transport-specific attachment reference
	From        string
	To          string
}

// Attachment derives the attachment class from the declared content type.
func (e InboundEvent) Attachment() AttachmentKind {
	if e.MediaRef == "" && e.ContentType == "" {
		return AttachmentNone
	}
	ct := strings.ToLower(strings.TrimSpace(e.ContentType))
	switch {
	case strings.HasPrefix(ct, "audio/"):
		return AttachmentAudio
	case strings.HasPrefix(ct, "image/"):
		return AttachmentImage
	default:
		return AttachmentOther
	}
}

// Verdict is the verification status leading every answer.
type Verdict string

const (
	VerdictVerified      Verdict = "VERIFIED"
	VerdictFake          Verdict = "UNVERIFIED-FAKE"
	VerdictPartiallyTrue Verdict = "PARTIALLY-TRUE"
	VerdictUnclear       Verdict = "UNCLEAR"
)

// Verdicts lists the closed set in prompt order.
var Verdicts = []Verdict{VerdictVerified, VerdictFake, VerdictPartiallyTrue, VerdictUnclear}

// Marker is the user-facing status line for the verdict.
func (v Verdict) Marker() string {
	switch v {
	case VerdictVerified:
		return "✅ VERIFIED"
	case VerdictFake:
		return "❌ UNVERIFIED-FAKE"
	case VerdictPartiallyTrue:
		return "⚠️ PARTIALLY-TRUE"
	default:
		return "❓ UNCLEAR"
	}
}

// Payload is the bounded, transport-safe reply for one event.
type Payload struct {
	Text     string
	Speech   string // plain text variant used for synthesis
	AudioURL string
	Verdict  Verdict
	Kind     InputKind
	URL      string // first URL found in the query, if any
}

// Decision names the single reply path chosen for a payload.
type Decision string

const (
	DecisionSyncReply Decision = "sync_reply"
	DecisionPushed    Decision = "pushed"
)
