package trac

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Excluder matches page names against shell-style patterns such as "Trac*".
type Excluder struct {
	patterns []string
	globs    []glob.Glob
}

// NewExcluder compiles the patterns. An invalid pattern is an error.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{patterns: patterns, globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("trac: ignore pattern %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
	}
	return e, nil
}

// Match returns the first pattern that matches name.
func (e *Excluder) Match(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for i, g := range e.globs {
		if g.Match(name) {
			return e.patterns[i], true
		}
	}
	return "", false
}
