package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// maxHeadingLevel is the deepest heading Markdown can express.
const maxHeadingLevel = 6

var (
	underlined = re2(`__(.+?)__`)
	bold       = re2(`'''\s*(.+?)\s*'''`)

	italicQuotes = re2(`''(.+?)''`)
	// A colon before the slashes means a scheme such as https://.
	italicSlashes = around(`(?<!:)//(.+?)//`)

	codeProcessor = re2(`\s*\{\{\{\s*#!([\w#+-]+)`)
	ruleLine      = regexp.MustCompile(`^[ \t]*-{4,}[ \t]*$`)

	headings = compileHeadings()
)

// codeLanguages are the processors kept as fenced code info strings.
var codeLanguages = map[string]string{
	"sql":        "sql",
	"html":       "html",
	"c#":         "c#",
	"python":     "python",
	"xml":        "xml",
	"sh":         "sh",
	"bash":       "bash",
	"js":         "js",
	"javascript": "javascript",
	"java":       "java",
	"cpp":        "cpp",
	"c":          "c",
	"diff":       "diff",
	"ini":        "ini",
	"json":       "json",
	"yaml":       "yaml",
}

func formatUnderline(text string) string {
	return underlined.replace(text, func(g []string) string {
		return "<u>" + g[1] + "</u>"
	})
}

// formatBold must run after formatTables, which recognises header rows by
// their ''' markers.
func formatBold(text string) string {
	return bold.replace(text, func(g []string) string {
		return "**" + g[1] + "**"
	})
}

// formatItalic must run after formatBold: both use single quotes.
func formatItalic(text string) string {
	text = italicQuotes.replace(text, func(g []string) string {
		return "*" + g[1] + "*"
	})
	return italicSlashes.replace(text, func(g []string) string {
		return "*" + g[1] + "*"
	})
}

func formatCodeBlocks(text string) string {
	text = codeProcessor.replace(text, func(g []string) string {
		if lang, ok := codeLanguages[strings.ToLower(g[1])]; ok {
			return "\n```" + lang
		}
		return "\n```"
	})
	text = strings.ReplaceAll(text, "{{{", "```")
	return strings.ReplaceAll(text, "}}}", "```")
}

// formatRules rewrites rule lines to a canonical marker with a blank line
// above it, so the preceding paragraph is not read as a setext heading.
func formatRules(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !ruleLine.MatchString(line) {
			out = append(out, line)
			continue
		}
		if n := len(out); n == 0 || strings.TrimSpace(out[n-1]) != "" {
			out = append(out, "")
		}
		out = append(out, "----")
	}
	return strings.Join(out, "\n")
}

func compileHeadings() []pattern {
	out := make([]pattern, 0, maxHeadingLevel)
	for level := maxHeadingLevel; level >= 1; level-- {
		out = append(out, re2(fmt.Sprintf(`(?m)^={%d} (.+?)[ \t]*=*[ \t]*(?:#\S+)?[ \t]*$`, level)))
	}
	return out
}

// formatHeadings converts the deepest level first so that a longer prefix is
// never taken for a shorter one.
func formatHeadings(text string) string {
	for i, p := range headings {
		marker := strings.Repeat("#", maxHeadingLevel-i)
		text = p.replace(text, func(g []string) string {
			return marker + " " + strings.TrimSpace(g[1])
		})
	}
	return text
}
