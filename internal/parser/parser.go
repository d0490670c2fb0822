// Package parser extracts the title, links and images from converted
// Markdown.
package parser

import (
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Link is an inline link or image.
type Link struct {
	Text        string `json:"text"`
	Destination string `json:"destination"`
}

// Result holds the output of parsing a Markdown document.
type Result struct {
	Title  string `json:"title,omitempty"`
	Links  []Link `json:"links"`
	Images []Link `json:"images,omitempty"`
}

// Parse walks the Markdown AST of src. The title is the text of the first
// level-1 heading.
func Parse(src []byte) *Result {
	doc := md.Parser().Parse(text.NewReader(src))

	r := &Result{Links: []Link{}}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			if n.Level == 1 && r.Title == "" {
				r.Title = strings.TrimSpace(plainText(n, src))
			}
		case *ast.Link:
			r.Links = append(r.Links, Link{Text: plainText(n, src), Destination: string(n.Destination)})
			return ast.WalkSkipChildren, nil
		case *ast.Image:
			r.Images = append(r.Images, Link{Text: plainText(n, src), Destination: string(n.Destination)})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return r
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// Targets returns the distinct page names of links whose destination lies
// below base, in order of first appearance. Query strings and fragments are
// dropped.
func Targets(links []Link, base string) []string {
	prefix := strings.TrimSuffix(base, "/") + "/"
	seen := make(map[string]struct{})
	var out []string
	for _, l := range links {
		rest, ok := strings.CutPrefix(l.Destination, prefix)
		if !ok {
			continue
		}
		if i := strings.IndexAny(rest, "?#"); i >= 0 {
			rest = rest[:i]
		}
		if name, err := url.PathUnescape(rest); err == nil {
			rest = name
		}
		if rest == "" {
			continue
		}
		if _, dup := seen[rest]; dup {
			continue
		}
		seen[rest] = struct{}{}
		out = append(out, rest)
	}
	return out
}
