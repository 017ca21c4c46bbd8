package pipeline

import (
	"context"
	"regexp"
	"strings"
)

// RiskUnknown stands in for a risk narrative that could not be obtained.
const RiskUnknown = "unknown"

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// FirstURL returns the first http(s) URL in text, or "".
// Trailing sentence punctuation and unbalanced closing brackets are dropped.
func FirstURL(text string) string {
	u := urlPattern.FindString(text)
	for u != "" {
		last := u[len(u)-1]
		switch {
		case strings.IndexByte(".,;:!?*_", last) >= 0:
			u = u[:len(u)-1]
		case last == ')' && strings.Count(u, "(") < strings.Count(u, ")"):
			u = u[:len(u)-1]
		case last == ']' && strings.Count(u, "[") < strings.Count(u, "]"):
			u = u[:len(u)-1]
		default:
			return u
		}
	}
	return u
}

// Enrichment is the side data attached to a query about a URL.
type Enrichment struct {
	URL     string
	Content string // extracted page or transcript text, may be empty
	Risk    string // narrative or RiskUnknown
}

// enrich looks up the first URL in query. Neither lookup can fail the
// request: extraction failure leaves Content empty so the bare URL is
// checked, risk failure yields RiskUnknown.
func (p *Pipeline) enrich(ctx context.Context, query string) Enrichment {
	e := Enrichment{URL: FirstURL(query)}
	if e.URL == "" {
		return e
	}

	if p.extractor != nil {
		content, err := p.extractor.Extract(ctx, e.URL)
		if err != nil {
			p.providerFailed("extract", err, "url", e.URL)
		} else {
			e.Content = strings.TrimSpace(content)
		}
	}

	e.Risk = RiskUnknown
	if p.risk != nil {
		narrative, err := p.risk.Score(ctx, e.URL)
		if err != nil {
			p.providerFailed("risk", err, "url", e.URL)
		} else if narrative = strings.TrimSpace(narrative); narrative != "" {
			e.Risk = narrative
		}
	}
	return e
}
