package mcpserver

import (
	"fmt"
	"strings"
)

// rulesURI is the resource under which the conversion rules are published.
const rulesURI = "tracmark://conversion-rules"

// conversionRules summarises how Trac wiki markup maps to Markdown. The
// pass order is appended at runtime.
const conversionRules = `# Trac to Markdown conversion rules

## Text

| Trac                       | Markdown                  |
|----------------------------|---------------------------|
| ` + "`= Title =`" + `                | ` + "`# Title`" + ` (levels 1-6)   |
| ` + "`'''bold'''`" + `               | ` + "`**bold**`" + `                |
| ` + "`''italic''`, `//italic//`" + ` | ` + "`*italic*`" + `                |
| ` + "`__underline__`" + `            | ` + "`<u>underline</u>`" + `        |
| ` + "` * item`" + `                  | ` + "` - item`" + `                 |
| ` + "`{{{ #!python`" + `             | fenced block with language |
| ` + "`----`" + `                     | horizontal rule            |
| ` + "`||a||b||`" + `                 | pipe table                 |

## Links

- ` + "`#42`, `[ticket:42]`, `[ticket:42 text]`" + ` link to the ticket tracker.
- ` + "`[report:7]`, `[report:7 text]`" + ` link to a report.
- ` + "`wiki:Page`, `[wiki:Page text]`" + ` link to the wiki.
- ` + "`source:path@rev`, `[source:path text]`" + ` link to the repository browser.
- ` + "`source:docs/...`" + ` links to the documentation site.
- ` + "`[log:path@a:b text]`" + ` links to the revision log.
- ` + "`[https://host text]`" + ` becomes a plain Markdown link.
- ` + "`[[TitleIndex(Prefix/)]]`" + ` becomes a list of matching pages.

## Removed

` + "`[[PageOutline]]`, `[[TicketQuery(...)]]` and `[[Emails]]`" + ` have no
Markdown equivalent and are dropped. ` + "`[[BR]]`" + ` becomes a newline.

## Attachments

` + "`[[Image(file.png)]]`" + ` becomes an image pointing at the copied
attachment. Images that reference a file the page does not have are reported
as diagnostics and left unchanged.
`

func rulesDocument(passes []string) string {
	var b strings.Builder
	b.WriteString(conversionRules)
	b.WriteString("\n## Pass order\n\n")
	for i, p := range passes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	return b.String()
}
