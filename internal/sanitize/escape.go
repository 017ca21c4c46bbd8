package sanitize

import (
	"regexp"
	"strconv"
	"strings"
)

var ampRef = regexp.MustCompile(`&(?:#[0-9]{1,7};|#[xX][0-9A-Fa-f]{1,6};|(?:amp|lt|gt|quot|apos);)?`)

// EscapeXML escapes &, < and > and drops characters XML 1.0 does not
// allow. The five predefined entities and numeric references to legal
// characters are left alone, so escaping twice changes nothing.
func EscapeXML(s string) string {
	s = strings.Map(func(r rune) rune {
		if xmlChar(r) {
			return r
		}
		return -1
	}, s)
	s = ampRef.ReplaceAllStringFunc(s, func(m string) string {
		if len(m) == 1 || (m[1] == '#' && !numericRefOK(m)) {
			return "&amp;" + m[1:]
		}
		return m
	})
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// xmlChar reports whether r is in the XML 1.0 Char production.
func xmlChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r < 0x20:
		return false
	case r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
		return false
	default:
		return r <= 0x10FFFF
	}
}

// numericRefOK reports whether a &#...; reference names a legal character.
func numericRefOK(ref string) bool {
	digits := ref[2 : len(ref)-1]
	base := 10
	if digits[0] == 'x' || digits[0] == 'X' {
		digits, base = digits[1:], 16
	}
	n, err := strconv.ParseInt(digits, base, 32)
	return err == nil && xmlChar(rune(n))
}

// safeCut moves a cut point back so it never lands inside an entity.
func safeCut(s string) string {
	amp := strings.LastIndexByte(s, '&')
	if amp < 0 {
		return s
	}
	if strings.IndexByte(s[amp:], ';') < 0 {
		return s[:amp]
	}
	return s
}
