package migrate

import (
	"context"

	"github.com/starford/tracmark/internal/markup"
	"github.com/starford/tracmark/internal/models"
	"github.com/starford/tracmark/internal/parser"
)

// Conversion is the result of converting text without writing it.
type Conversion struct {
	Page        string              `json:"page,omitempty"`
	Version     int                 `json:"version,omitempty"`
	Markdown    string              `json:"markdown"`
	Title       string              `json:"title,omitempty"`
	Links       []parser.Link       `json:"links"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// Convert converts markup as if it were the body of page. Image directives
// are left alone and nothing is written.
func (s *Service) Convert(ctx context.Context, page, text string) (*Conversion, error) {
	return s.convert(ctx, models.Page{Name: page, Text: text})
}

// Preview converts the stored text of a page without writing it.
func (s *Service) Preview(ctx context.Context, name string) (*Conversion, error) {
	p, err := s.src.Page(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.convert(ctx, *p)
}

func (s *Service) convert(ctx context.Context, page models.Page) (*Conversion, error) {
	res, err := s.preview.Convert(ctx, page)
	if err != nil {
		return nil, err
	}
	parsed := parser.Parse([]byte(res.Text))
	diags := res.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	return &Conversion{
		Page:        page.Name,
		Version:     page.Version,
		Markdown:    res.Text,
		Title:       parsed.Title,
		Links:       parsed.Links,
		Diagnostics: diags,
	}, nil
}

// ListPages returns the names of pages starting with prefix.
func (s *Service) ListPages(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.src.PagesWithPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Rules returns the conversion passes in execution order.
func (s *Service) Rules() []string {
	return s.preview.Passes()
}

// Pipeline exposes the preview pipeline, which has no attachment side effects.
func (s *Service) Pipeline() *markup.Pipeline {
	return s.preview
}
