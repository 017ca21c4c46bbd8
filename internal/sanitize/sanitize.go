// Package sanitize turns model answers into text a messaging transport can
// carry: markup rewritten, citations dropped, reserved characters escaped
// and the length held under the transport's ceiling.
package sanitize

import "strings"

// DefaultNotice closes every shortened reply.
const DefaultNotice = "📎 Reply shortened. More details are available on request."

// Profile describes one outbound transport.
type Profile struct {
	Name     string
	Limit    int  // hard ceiling in UTF-16 units, 0 means unbounded
	Budget   int  // target size of a shortened reply
	LongLine int  // longest line kept whole when shortening
	Emphasis bool // render bold as the transport's native *x*
	Escape   func(string) string
	Notice   string
}

var (
	Twilio = Profile{
		Name:     "twilio",
		Limit:    1500,
		Budget:   1100,
		LongLine: 280,
		Emphasis: true,
		Escape:   EscapeXML,
		Notice:   DefaultNotice,
	}
	Telegram = Profile{
		Name:     "telegram",
		Limit:    4000,
		Budget:   3000,
		LongLine: 600,
		Notice:   DefaultNotice,
	}
	// Speech is plain unbounded text for synthesis.
	Speech = Profile{Name: "speech"}
)

// WithLimits returns a copy of p using the given sizes. Zero values keep p's.
func (p Profile) WithLimits(limit, budget, longLine int) Profile {
	if limit > 0 {
		p.Limit = limit
	}
	if budget > 0 {
		p.Budget = budget
	}
	if longLine > 0 {
		p.LongLine = longLine
	}
	return p
}

// Sanitize applies the rule table and the profile's escaping.
func Sanitize(text string, p Profile) string {
	out := strings.ReplaceAll(text, "\r\n", "\n")
	for _, r := range Rules {
		if r.Fn != nil {
			out = r.Pattern.ReplaceAllStringFunc(out, func(m string) string {
				return r.Fn(r.Pattern.FindStringSubmatch(m), p.Emphasis)
			})
			continue
		}
		repl := r.Plain
		if p.Emphasis {
			repl = r.Native
		}
		out = r.Pattern.ReplaceAllString(out, repl)
	}
	out = strings.TrimSpace(out)
	if p.Escape != nil {
		out = p.Escape(out)
	}
	return out
}

// Clean sanitizes and bounds text for p.
func Clean(text string, p Profile) string {
	return Bound(Sanitize(text, p), p)
}
