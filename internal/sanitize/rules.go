package sanitize

import (
	"regexp"
	"strings"
)

// Rule is one markup rewrite. Native is used when the profile renders
// emphasis in the transport's own syntax, Plain otherwise. When Fn is set
// it replaces each match instead, given the submatches.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Native  string
	Plain   string
	Fn      func(groups []string, native bool) string
}

// Rules run top to bottom. Later rules assume earlier ones already ran:
// headings go first so emphasis inside them is not wrapped twice, and
// bullets are rewritten after bold so "* **x**" keeps its emphasis.
var Rules = []Rule{
	{Name: "code-fence", Pattern: regexp.MustCompile("(?m)^```[A-Za-z0-9_+-]*[ \t]*\n?"), Native: "", Plain: ""},
	{Name: "backtick", Pattern: regexp.MustCompile("`+"), Native: "", Plain: ""},
	{Name: "heading", Pattern: regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(.+?)[ \t#]*$`), Fn: emphasis},
	{Name: "stray-hash", Pattern: regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*`), Native: "", Plain: ""},
	{Name: "bold-italic", Pattern: regexp.MustCompile(`\*\*\*([^*\n]+)\*\*\*`), Native: "*$1*", Plain: "$1"},
	{Name: "bold", Pattern: regexp.MustCompile(`\*\*([^\n]+?)\*\*`), Fn: emphasis},
	{Name: "underline-bold", Pattern: regexp.MustCompile(`__([^_\n]+)__`), Native: "_$1_", Plain: "$1"},
	{Name: "strike", Pattern: regexp.MustCompile(`~~([^~\n]+)~~`), Native: "~$1~", Plain: "$1"},
	{Name: "link", Pattern: regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^)\s]+)\)`), Native: "$1 ($2)", Plain: "$1 ($2)"},
	{Name: "citation", Pattern: regexp.MustCompile(`[ \t]*\[\d+(?:[ \t]*[,–-][ \t]*\d+)*\]`), Native: "", Plain: ""},
	{Name: "bullet", Pattern: regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`), Native: "• ", Plain: "• "},
	{Name: "single-emphasis", Pattern: regexp.MustCompile(`\*([^*\n]+)\*`), Native: "*$1*", Plain: "$1"},
	{Name: "trailing-space", Pattern: regexp.MustCompile(`(?m)[ \t]+$`), Native: "", Plain: ""},
	{Name: "blank-runs", Pattern: regexp.MustCompile(`\n{3,}`), Native: "\n\n", Plain: "\n\n"},
}

var innerMarkup = strings.NewReplacer("**", "", "__", "", "~~", "", "*", "")

// emphasis renders a bold span or a heading. Markers nested inside are
// dropped; no transport nests emphasis.
func emphasis(g []string, native bool) string {
	inner := strings.TrimSpace(innerMarkup.Replace(g[1]))
	if inner == "" {
		return ""
	}
	if native {
		return "*" + inner + "*"
	}
	return inner
}
