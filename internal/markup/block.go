package markup

import (
	"regexp"
	"strings"
)

var (
	listItem    = re2(`(?m)^([ \t]*)\* (.+)$`)
	tableHeader = regexp.MustCompile(`^[ \t]*\|\|\s*'''.+'''\s*\|\|`)
)

// formatLists must run before formatItalic and formatBold so a leading bullet
// is never taken for an emphasis delimiter.
func formatLists(text string) string {
	return listItem.replace(text, func(g []string) string {
		return g[1] + "- " + g[2]
	})
}

// formatTables turns Trac table rows into pipe table rows. A row whose first
// cell is bold is a header and gets a separator row below it.
func formatTables(text string) string {
	if !strings.Contains(text, "||") {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, line)
		if tableHeader.MatchString(line) {
			if cells := strings.Count(line, "||") - 1; cells > 0 {
				out = append(out, "|"+strings.Repeat(" ---- |", cells))
			}
		}
	}
	return strings.ReplaceAll(strings.Join(out, "\n"), "||", "|")
}
