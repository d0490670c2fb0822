package markup

import (
	"strings"

	"github.com/starford/tracmark/internal/models"
)

var (
	genericLink = re2(`\[((?:https?://|www\.)[^\s\]]+)\s+([^\]]+)\]`)
	titleIndex  = re2(`\[\[TitleIndex(?:\(([^)\n]*)\))?\]\]`)
	logLink     = re2(`\[log:([^\s\]]+)\s+([^\]]+)\]`)

	sourceDocsQuoted  = re2(`\[source:"+/?docs/([^"\]]+)"+\s+([^\]]+)\]`)
	sourceDocsBracket = re2(`\[source:/?docs/([^\s\]"]+)\s+([^\]]+)\]`)
	sourceDocsBare    = around(`(?<![\[\w"])source:/?docs/([^\s\]]+?)(\.?(?:\s|$))`)

	sourceQuoted = re2(`\[source:"([^"\]]+)"\s*([^\]]*)\]`)
	sourceTitled = re2(`\[source:([^\s\]]+)\s+([^\]]+)\]`)
	sourcePlain  = around(`\[source:([^\s\]]+)\](?!\()`)
	sourceBare   = around(`(?<![\[\w])source:([^\s\]]+?)(\.?(?:\s|$))`)

	wikiTitled = around(`\[wiki:([\w/]+)\s+([^\]]+)\]`)
	wikiPlain  = around(`\[wiki:([\w/]+)\](?!\()`)
	wikiBare   = around(`(?<![\[\w])wiki:([\w/]+)`)

	reportTitled = re2(`\[report:(\d+)\s+([^\]]+)\]`)
	reportPlain  = around(`\[report:(\d+)\](?!\()`)

	ticketTitled = re2(`\[ticket:(\d+)\s+([^\]]+)\]`)
	ticketPlain  = around(`\[ticket:(\d+)\](?!\()`)
	ticketBare   = around(`(?<![&\w/])#(\d+)`)
)

// linkFormatter rewrites Trac link references into Markdown links.
type linkFormatter struct {
	ns    Namespaces
	index PageIndex
}

func (f *linkFormatter) generic(text string) string {
	return genericLink.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), g[1])
	})
}

// titleIndex expands the directive into one list item per page whose name
// starts with the prefix. Options after the first comma are ignored.
func (f *linkFormatter) titleIndex(st *state, text string) string {
	return titleIndex.replace(text, func(g []string) string {
		prefix, _, _ := strings.Cut(g[1], ",")
		prefix = strings.TrimSpace(prefix)

		if f.index == nil {
			st.diagnose(models.KindTitleIndexFailed, prefix, "no page index configured")
			return g[0]
		}
		names, err := f.index.PagesWithPrefix(st.ctx, prefix)
		if err != nil {
			st.diagnose(models.KindTitleIndexFailed, prefix, err.Error())
			return g[0]
		}

		var b strings.Builder
		for _, name := range names {
			b.WriteString("- ")
			b.WriteString(mdLink(name, join(f.ns.Wiki, name)))
			b.WriteByte('\n')
		}
		return b.String()
	})
}

func (f *linkFormatter) log(text string) string {
	return logLink.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), f.logURL(g[1]))
	})
}

// logURL maps path@rev to ?rev=rev and path@a:b to ?revs=a-b.
func (f *linkFormatter) logURL(ref string) string {
	path, rev, ok := strings.Cut(ref, "@")
	url := join(f.ns.Log, path)
	if !ok || rev == "" {
		return url
	}
	if from, to, isRange := strings.Cut(rev, ":"); isRange {
		return url + "?revs=" + from + "-" + to
	}
	return url + "?rev=" + rev
}

func (f *linkFormatter) sourceDocs(text string) string {
	text = sourceDocsQuoted.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), f.docsURL(g[1]))
	})
	text = sourceDocsBracket.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), f.docsURL(g[1]))
	})
	return sourceDocsBare.replace(text, func(g []string) string {
		return mdLink("document", f.docsURL(g[1])) + g[2]
	})
}

func (f *linkFormatter) docsURL(path string) string {
	return join(f.ns.Docs, strings.ReplaceAll(path, " ", "%20"))
}

func (f *linkFormatter) source(text string) string {
	text = sourceQuoted.replace(text, func(g []string) string {
		title := strings.TrimSpace(g[2])
		if title == "" {
			title = g[1]
		}
		return mdLink(title, f.browserURL(strings.ReplaceAll(g[1], " ", "%20")))
	})
	text = sourceTitled.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), f.browserURL(g[1]))
	})
	text = sourcePlain.replace(text, func(g []string) string {
		return mdLink(g[1], f.browserURL(g[1]))
	})
	return sourceBare.replace(text, func(g []string) string {
		return mdLink("source:"+g[1], f.browserURL(g[1])) + g[2]
	})
}

// browserURL maps path@rev to path?rev=rev.
func (f *linkFormatter) browserURL(ref string) string {
	path, rev, ok := strings.Cut(ref, "@")
	url := join(f.ns.Browser, path)
	if ok && rev != "" {
		url += "?rev=" + rev
	}
	return url
}

func (f *linkFormatter) wiki(text string) string {
	text = wikiTitled.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), join(f.ns.Wiki, g[1]))
	})
	text = wikiPlain.replace(text, func(g []string) string {
		return mdLink(g[1], join(f.ns.Wiki, g[1]))
	})
	return wikiBare.replace(text, func(g []string) string {
		return mdLink(g[1], join(f.ns.Wiki, g[1]))
	})
}

func (f *linkFormatter) report(text string) string {
	text = reportTitled.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), join(f.ns.Report, g[1]))
	})
	return reportPlain.replace(text, func(g []string) string {
		return mdLink("report:"+g[1], join(f.ns.Report, g[1]))
	})
}

// ticket runs last among the link passes: a # inside an already built URL
// is preceded by a slash or a word character and is left alone.
func (f *linkFormatter) ticket(text string) string {
	text = ticketTitled.replace(text, func(g []string) string {
		return mdLink(strings.TrimSpace(g[2]), join(f.ns.Ticket, g[1]))
	})
	text = ticketPlain.replace(text, func(g []string) string {
		return mdLink("ticket:"+g[1], join(f.ns.Ticket, g[1]))
	})
	return ticketBare.replace(text, func(g []string) string {
		return mdLink("ticket:"+g[1], join(f.ns.Ticket, g[1]))
	})
}
