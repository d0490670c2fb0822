// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tracmark conversion tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tracmark/internal/apperr"
	"github.com/starford/tracmark/internal/migrate"
)

// Server wraps the MCP server with tracmark tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *migrate.Service
	opts migrate.Options
}

// New creates a new MCP server with all tracmark tools registered. opts are
// the defaults for pages migrated through the migrate_page tool.
func New(svc *migrate.Service, opts migrate.Options) *Server {
	s := &Server{svc: svc, opts: opts}

	s.mcp = server.NewMCPServer(
		"tracmark",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_markup",
		mcp.WithDescription("Convert a fragment of Trac wiki markup to Markdown. "+
			"Nothing is written; image directives are left unchanged."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Trac wiki markup")),
		mcp.WithString("page", mcp.Description("Optional page the text belongs to, used in diagnostics")),
	), s.convertMarkup)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List wiki page names, optionally restricted to a prefix."),
		mcp.WithString("prefix", mcp.Description("Optional page name prefix (e.g. Dev/)")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("preview_page",
		mcp.WithDescription("Convert the latest revision of a wiki page without writing it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name (e.g. WikiStart)")),
	), s.previewPage)

	s.mcp.AddTool(mcp.NewTool("migrate_page",
		mcp.WithDescription("Migrate one wiki page and its attachments into the output tree."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Page name")),
		mcp.WithBoolean("force", mcp.Description("Rewrite the page even if it is up to date")),
	), s.migratePage)

	s.mcp.AddTool(mcp.NewTool("get_conversion_rules",
		mcp.WithDescription("Returns the Trac to Markdown conversion rules and pass order."),
	), s.getConversionRules)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Conversion Rules",
			mcp.WithResourceDescription("How Trac wiki constructs are rewritten as Markdown."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) convertMarkup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := s.svc.Convert(ctx, req.GetString("page", ""), text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(conv)
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.svc.ListPages(ctx, req.GetString("prefix", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no pages found"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) previewPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := s.svc.Preview(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(conv)
}

func (s *Server) migratePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := s.opts
	opts.Page = name
	opts.Force = opts.Force || req.GetBool("force", false)

	sum, err := s.svc.Run(ctx, opts, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum)
}

func (s *Server) getConversionRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(rulesDocument(s.svc.Rules())), nil
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     rulesDocument(s.svc.Rules()),
		},
	}, nil
}
