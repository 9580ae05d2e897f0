package mailparser

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// HTMLToText derives a plain-text body from HTML by stripping tags and
// collapsing whitespace. Best-effort, not a real HTML parser.
func HTMLToText(html string) string {
	text := htmlTagRe.ReplaceAllString(html, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
