package sanitize

import (
	"strings"
	"unicode/utf16"

	"truthline/internal/domain"
)

const ellipsis = "…"

// minTail is the smallest remaining room worth filling with a cut line.
const minTail = 40

// Len counts UTF-16 code units, the unit messaging gateways meter.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cut returns the longest prefix of s that fits in max units, never
// splitting a rune or an XML entity.
func cut(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > max {
			return safeCut(s[:i])
		}
		n += w
	}
	return s
}

// truncate shortens s to max units including a trailing ellipsis.
func truncate(s string, max int) string {
	if Len(s) <= max {
		return s
	}
	return strings.TrimRight(cut(s, max-Len(ellipsis)), " \t") + ellipsis
}

// Bound holds text under p.Limit. Over-long text is rebuilt from the status
// line and whole short lines up to p.Budget, then closed with p.Notice.
func Bound(text string, p Profile) string {
	if p.Limit <= 0 || Len(text) <= p.Limit {
		return text
	}

	notice := p.Notice
	if notice == "" {
		notice = DefaultNotice
	}
	budget := p.Budget
	if budget <= 0 || budget >= p.Limit {
		budget = p.Limit * 3 / 4
	}
	longLine := p.LongLine
	if longLine <= 0 {
		longLine = budget
	}

	lines := strings.Split(text, "\n")
	var kept []string
	used := 0
	if hasStatusMarker(lines[0]) {
		first := truncate(lines[0], longLine)
		kept = append(kept, first)
		used = Len(first)
		lines = lines[1:]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(kept) > 0 && kept[len(kept)-1] != "" {
				kept = append(kept, "")
				used++
			}
			continue
		}
		line = truncate(line, longLine)
		n := Len(line) + 1
		if used+n > budget {
			if room := budget - used - 1; room >= minTail {
				kept = append(kept, truncate(line, room))
			}
			break
		}
		kept = append(kept, line)
		used += n
	}

	body := strings.TrimSpace(strings.Join(kept, "\n"))
	out := notice
	if body != "" {
		out = body + "\n\n" + notice
	}
	if Len(out) > p.Limit {
		// Last resort: hard cut the body, the status line sits at its start.
		room := p.Limit - Len(notice) - 2
		out = strings.TrimSpace(cut(body, room)) + "\n\n" + notice
		if Len(out) > p.Limit {
			out = cut(out, p.Limit)
		}
	}
	return out
}

func hasStatusMarker(line string) bool {
	for _, v := range domain.Verdicts {
		if strings.HasPrefix(line, v.Marker()) {
			return true
		}
	}
	return false
}
