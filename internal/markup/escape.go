package markup

import (
	"regexp"
	"strings"
)

// Protect doubles every backslash so that no later pass can read a lone
// backslash as the start of an escape sequence. Restore is its inverse and
// must be the last pass applied.
func Protect(text string) string {
	return strings.ReplaceAll(text, `\`, `\\`)
}

// Restore undoes Protect. Restore(Protect(x)) == x for any x that does not
// already contain a doubled backslash.
func Restore(text string) string {
	return strings.ReplaceAll(text, `\\`, `\`)
}

var (
	lineEndings = regexp.MustCompile(`\r\n?`)
	pageOutline = regexp.MustCompile(`\[\[PageOutline(?:\([^)\n]*\))?\]\]`)
	ticketQuery = regexp.MustCompile(`\[\[TicketQuery\(.+?\)\]\]`)

	lineBreaks = strings.NewReplacer("[[BR]]", "\n", "[[br]]", "\n")
)

// preprocess removes directives that have no Markdown equivalent. It runs
// once, after Protect and before any construct-specific pass.
func preprocess(text string) string {
	text = lineEndings.ReplaceAllString(text, "\n")
	text = pageOutline.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "[[Emails]]", "")

	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}

	text = lineBreaks.Replace(text)

	// An unterminated query directive simply does not match and is kept.
	return ticketQuery.ReplaceAllString(text, "")
}
