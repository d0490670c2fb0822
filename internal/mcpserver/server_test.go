package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/tracmark/internal/markup"
	"github.com/starford/tracmark/internal/migrate"
	"github.com/starford/tracmark/internal/storage"
	"github.com/starford/tracmark/internal/testutil"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()

	env := testutil.TracEnv(t, []testutil.Page{
		{Name: "WikiStart", Text: "= Home =\n'''Hello''' [[Image(logo.png)]]\n"},
		{Name: "Dev/Setup", Text: "See wiki:WikiStart\n"},
	}, []testutil.Attachment{
		{Page: "WikiStart", Filename: "logo.png", Content: []byte("PNG")},
	})
	_, wiki := testutil.TestOutput(t)
	_, files := testutil.TestOutput(t)

	svc, err := migrate.NewService(testutil.TracDB(t, env), testutil.TestLedger(t), wiki, files, migrate.Config{
		Namespaces: markup.Namespaces{
			Ticket:  "https://trac.example.com/ticket",
			Report:  "https://trac.example.com/report",
			Wiki:    "https://trac.example.com/wiki",
			Browser: "https://trac.example.com/browser",
			Docs:    "https://docs.example.com",
			Log:     "https://trac.example.com/log",
		},
		AttachmentsURL: "/Attachments",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, migrate.Options{Workers: 1}), wiki
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "convert_markup":
		result, err = srv.convertMarkup(ctx, req)
	case "list_pages":
		result, err = srv.listPages(ctx, req)
	case "preview_page":
		result, err = srv.previewPage(ctx, req)
	case "migrate_page":
		result, err = srv.migratePage(ctx, req)
	case "get_conversion_rules":
		result, err = srv.getConversionRules(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestConvertMarkup(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "convert_markup", map[string]interface{}{"text": "== Notes ==\n''quiet''"})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var conv migrate.Conversion
	if err := json.Unmarshal([]byte(resultText(r)), &conv); err != nil {
		t.Fatal(err)
	}
	if conv.Markdown != "## Notes\n*quiet*" {
		t.Errorf("markdown = %q", conv.Markdown)
	}
}

func TestConvertMarkup_RequiresText(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "convert_markup", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without text")
	}
}

func TestListPages(t *testing.T) {
	srv, _ := testServer(t)

	if got := resultText(callTool(t, srv, "list_pages", map[string]interface{}{})); got != "Dev/Setup\nWikiStart" {
		t.Errorf("list = %q", got)
	}
	if got := resultText(callTool(t, srv, "list_pages", map[string]interface{}{"prefix": "Nope"})); got != "no pages found" {
		t.Errorf("empty list = %q", got)
	}
}

func TestPreviewPage(t *testing.T) {
	srv, wiki := testServer(t)

	r := callTool(t, srv, "preview_page", map[string]interface{}{"name": "WikiStart"})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, "**Hello**") {
		t.Errorf("preview = %s", text)
	}
	if ok, _ := wiki.Exists("WikiStart.md"); ok {
		t.Error("preview wrote output")
	}

	if r := callTool(t, srv, "preview_page", map[string]interface{}{"name": "Nope"}); !r.IsError {
		t.Error("expected error for missing page")
	}
}

func TestMigratePage(t *testing.T) {
	srv, wiki := testServer(t)

	r := callTool(t, srv, "migrate_page", map[string]interface{}{"name": "WikiStart"})
	if r.IsError {
		t.Fatalf("migrate: %s", resultText(r))
	}
	var sum migrate.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Converted != 1 {
		t.Errorf("summary = %+v", sum)
	}
	data, err := wiki.Read("WikiStart.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "![logo.png](/Attachments/WikiStart/logo.png)") {
		t.Errorf("WikiStart.md = %q", data)
	}
	if ok, _ := wiki.Exists("Dev/Setup.md"); ok {
		t.Error("single-page migration wrote another page")
	}
}

func TestConversionRules(t *testing.T) {
	srv, _ := testServer(t)

	text := resultText(callTool(t, srv, "get_conversion_rules", nil))
	if !strings.Contains(text, "## Pass order") || !strings.Contains(text, "1. protect") {
		t.Errorf("rules = %q", text)
	}

	res, err := srv.readRulesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if tc, ok := res[0].(mcp.TextResourceContents); !ok || tc.URI != rulesURI {
		t.Errorf("resource = %+v", res[0])
	}
}
