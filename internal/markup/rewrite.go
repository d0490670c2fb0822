package markup

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// pattern rewrites every non-overlapping match of one construct from left to
// right. Positions are taken from the text the pass received, so replacing
// one match never shifts or alters a match that has not been handled yet, and
// replacement text is never rescanned by the same pattern.
type pattern interface {
	replace(text string, fn func(groups []string) string) string
}

// re2Pattern is backed by the standard library engine.
type re2Pattern struct {
	re *regexp.Regexp
}

func re2(expr string) pattern {
	return re2Pattern{re: regexp.MustCompile(expr)}
}

func (p re2Pattern) replace(text string, fn func([]string) string) string {
	locs := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// aroundPattern is backed by regexp2 for expressions that need look-behind
// or look-ahead, which RE2 does not support.
type aroundPattern struct {
	re *regexp2.Regexp
}

func around(expr string) pattern {
	return aroundPattern{re: regexp2.MustCompile(expr, regexp2.None)}
}

func (p aroundPattern) replace(text string, fn func([]string) string) string {
	out, err := p.re.ReplaceFunc(text, func(m regexp2.Match) string {
		gs := m.Groups()
		groups := make([]string, len(gs))
		for i := range gs {
			groups[i] = gs[i].String()
		}
		return fn(groups)
	}, -1, -1)
	if err != nil {
		// Only a match timeout can fail here; leave the text unformatted.
		return text
	}
	return out
}
