// Package markup converts Trac wiki markup to Markdown through an ordered
// list of named text passes.
package markup

import (
	"context"
	"fmt"

	"github.com/starford/tracmark/internal/models"
)

// PageIndex looks up wiki page names by prefix. It backs the TitleIndex
// directive, the only pass that needs data beyond the page text.
type PageIndex interface {
	PagesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// AttachmentResolver rewrites image directives for one page and relocates its
// attachments. An error means a copy failed and the page must be retried.
type AttachmentResolver interface {
	Resolve(ctx context.Context, page, text string) (string, []models.Diagnostic, error)
}

// Pass is one named stage of the pipeline.
type Pass struct {
	Name  string
	apply func(st *state, text string) string
}

// state carries per-document context through the passes.
type state struct {
	ctx   context.Context
	page  string
	diags []models.Diagnostic
	err   error
}

func (s *state) diagnose(kind, subject, msg string) {
	s.diags = append(s.diags, models.Diagnostic{
		Document: s.page,
		Kind:     kind,
		Subject:  subject,
		Message:  msg,
	})
}

func pure(fn func(string) string) func(*state, string) string {
	return func(_ *state, text string) string { return fn(text) }
}

// Result is the converted text of one page.
type Result struct {
	Text        string              `json:"markdown"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// Pipeline is safe for concurrent use by multiple goroutines as long as the
// injected index and resolver are.
type Pipeline struct {
	passes []Pass
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	index       PageIndex
	attachments AttachmentResolver
}

// WithPageIndex enables TitleIndex expansion.
func WithPageIndex(idx PageIndex) Option {
	return func(o *options) { o.index = idx }
}

// WithAttachments enables image resolution and attachment relocation.
func WithAttachments(r AttachmentResolver) Option {
	return func(o *options) { o.attachments = r }
}

// New validates the namespaces and assembles the passes.
func New(ns Namespaces, opts ...Option) (*Pipeline, error) {
	if err := ns.Validate(); err != nil {
		return nil, fmt.Errorf("link namespaces: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	links := &linkFormatter{ns: ns, index: o.index}
	passes := []Pass{
		{"protect", pure(Protect)},
		{"preprocess", pure(preprocess)},
		{"lists", pure(formatLists)},
		{"links.generic", pure(links.generic)},
		{"links.titleindex", links.titleIndex},
		{"links.log", pure(links.log)},
		{"links.sourcedocs", pure(links.sourceDocs)},
		{"links.source", pure(links.source)},
		{"links.wiki", pure(links.wiki)},
		{"links.report", pure(links.report)},
		{"links.ticket", pure(links.ticket)},
		{"underline", pure(formatUnderline)},
		{"codeblocks", pure(formatCodeBlocks)},
		{"rules", pure(formatRules)},
		{"headings", pure(formatHeadings)},
		{"tables", pure(formatTables)},
		{"bold", pure(formatBold)},
		{"italic", pure(formatItalic)},
	}
	if r := o.attachments; r != nil {
		passes = append(passes, Pass{"attachments", func(st *state, text string) string {
			out, diags, err := r.Resolve(st.ctx, st.page, text)
			st.diags = append(st.diags, diags...)
			if err != nil {
				st.err = err
				return text
			}
			return out
		}})
	}
	passes = append(passes, Pass{"restore", pure(Restore)})

	return &Pipeline{passes: passes}, nil
}

// Passes returns the stage names in execution order.
func (p *Pipeline) Passes() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name
	}
	return names
}

// Convert runs every pass over the page text.
func (p *Pipeline) Convert(ctx context.Context, page models.Page) (*Result, error) {
	st := &state{ctx: ctx, page: page.Name}
	text := page.Text
	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text = pass.apply(st, text)
		if st.err != nil {
			return nil, fmt.Errorf("convert %s: %s: %w", page.Name, pass.Name, st.err)
		}
	}
	return &Result{Text: text, Diagnostics: st.diags}, nil
}

// ConvertText converts a fragment that does not belong to a stored page.
func (p *Pipeline) ConvertText(ctx context.Context, text string) (*Result, error) {
	return p.Convert(ctx, models.Page{Text: text})
}
