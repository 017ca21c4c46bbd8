package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"truthline/internal/domain"
)

const systemPrompt = `You are a fact-checking assistant answering on a messaging app.
Decide whether the claims in the user's message are accurate.

Format:
- The first line must be exactly "STATUS: <value>" where <value> is one of %s.
- After a blank line, explain the evidence in short plain paragraphs. Cite sources by name when you have them.
- Do not use tables, headings or markdown emphasis.

Write only in %s, whatever language the message is in.
Keep the whole reply under %d characters.
Be calm and respectful. If the message is a scam or phishing attempt, say so plainly and tell the user not to click or pay.`

// PromptOptions shape the reasoning request.
type PromptOptions struct {
	Language    string
	MaxChars    int
	Model       string
	MaxTokens   int
	Temperature float64
}

// BuildRequest assembles the single reasoning call for query and its
// enrichment.
func BuildRequest(query string, e Enrichment, opts PromptOptions) domain.ChatRequest {
	names := make([]string, len(domain.Verdicts))
	for i, v := range domain.Verdicts {
		names[i] = string(v)
	}

	var user strings.Builder
	user.WriteString("Message to check:\n")
	user.WriteString(query)
	if e.URL != "" {
		if e.Content != "" {
			fmt.Fprintf(&user, "\n\nLinked content (%s):\n%s", e.URL, e.Content)
		}
		fmt.Fprintf(&user, "\n\nURL risk signal: %s", e.Risk)
	}

	return domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, strings.Join(names, ", "), opts.Language, opts.MaxChars)},
			{Role: "user", Content: user.String()},
		},
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
}

// statusLine accepts only the known status words, longest first, so text
// after the status on the same line is never taken for part of it.
var statusLine = regexp.MustCompile(`(?i)^[\s*_#>]*status\s*:\s*[*_]*\s*(unverified[\s_-]+fake|partially[\s_-]+true|partly[\s_-]+true|unverified|verified|unclear|unknown|mixed|false|fake|true)\b`)

// ParseVerdict splits an answer into its status and the remaining body.
// An answer without a recognizable first status line is UNCLEAR and kept
// whole, status line included.
func ParseVerdict(answer string) (domain.Verdict, string) {
	answer = strings.TrimSpace(answer)
	first, rest, _ := strings.Cut(answer, "\n")
	first = strings.TrimSpace(first)

	for _, v := range domain.Verdicts {
		if strings.HasPrefix(first, v.Marker()) {
			return v, strings.TrimSpace(rest)
		}
	}

	m := statusLine.FindStringSubmatch(first)
	if m == nil {
		return domain.VerdictUnclear, answer
	}
	v, ok := normalizeVerdict(m[1])
	if !ok {
		return domain.VerdictUnclear, answer
	}
	tail := strings.TrimLeft(first[len(m[0]):], " \t*_.:;,-")
	rest = strings.TrimSpace(rest)
	switch {
	case tail == "":
		return v, rest
	case rest == "":
		return v, tail
	default:
		return v, tail + "\n" + rest
	}
}

func normalizeVerdict(s string) (domain.Verdict, bool) {
	s = strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), " "))
	switch s {
	case "VERIFIED", "TRUE":
		return domain.VerdictVerified, true
	case "UNVERIFIED FAKE", "UNVERIFIED", "FAKE", "FALSE":
		return domain.VerdictFake, true
	case "PARTIALLY TRUE", "PARTLY TRUE", "MIXED":
		return domain.VerdictPartiallyTrue, true
	case "UNCLEAR", "UNKNOWN":
		return domain.VerdictUnclear, true
	default:
		return "", false
	}
}

// Render puts the status marker line above the body.
func Render(v domain.Verdict, body string) string {
	if body == "" {
		return v.Marker()
	}
	return v.Marker() + "\n\n" + body
}

// spoken is the opening sentence of a voice reply.
func spoken(v domain.Verdict) string {
	switch v {
	case domain.VerdictVerified:
		return "This claim checks out."
	case domain.VerdictFake:
		return "This claim appears to be false."
	case domain.VerdictPartiallyTrue:
		return "This claim is only partly true."
	default:
		return "This claim could not be confirmed."
	}
}
