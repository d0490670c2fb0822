package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tracmark/internal/apperr"
	"github.com/starford/tracmark/internal/migrate"
)

// Migrator is the part of migrate.Service the handlers use.
type Migrator interface {
	Convert(ctx context.Context, page, text string) (*migrate.Conversion, error)
	Preview(ctx context.Context, name string) (*migrate.Conversion, error)
	ListPages(ctx context.Context, prefix string) ([]string, error)
	Start(ctx context.Context, opts migrate.Options, emit migrate.EventFunc) error
	Running() bool
	Rules() []string
}

var _ Migrator = (*migrate.Service)(nil)

// Handler holds API route handlers.
type Handler struct {
	svc     Migrator
	baseCtx context.Context
	opts    migrate.Options
	emit    migrate.EventFunc
}

// NewHandler creates a new Handler. Runs started over HTTP use opts as their
// defaults, live as long as baseCtx and report progress to emit.
func NewHandler(svc Migrator, baseCtx context.Context, opts migrate.Options, emit migrate.EventFunc) *Handler {
	return &Handler{svc: svc, baseCtx: baseCtx, opts: opts, emit: emit}
}

// pageName extracts the page name from the URL (everything after /api/pages/).
// Supports encoded slashes from OpenAPI clients (e.g. Dev%2FSetup).
func pageName(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert Trac markup to Markdown
//	@Tags			convert
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConvertRequest	true	"Markup to convert"
//	@Success		200		{object}	Conversion
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	conv, err := h.svc.Convert(r.Context(), req.Page, req.Text)
	if err != nil {
		slog.Error("convert failed", slog.String("page", req.Page), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListPages handles GET /api/pages.
//
//	@Summary		List wiki page names
//	@Tags			pages
//	@Produce		json
//	@Param			prefix	query		string	false	"Page name prefix"
//	@Success		200		{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	names, err := h.svc.ListPages(r.Context(), prefix)
	if err != nil {
		slog.Error("list pages failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: names, Total: len(names)})
}

// PreviewPage handles GET /api/pages/*.
//
//	@Summary		Preview the Markdown of a stored page
//	@Tags			pages
//	@Produce		json
//	@Param			name	path		string	true	"Page name"
//	@Success		200		{object}	Conversion
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{name} [get]
func (h *Handler) PreviewPage(w http.ResponseWriter, r *http.Request) {
	name := pageName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("page name is required"))
		return
	}
	conv, err := h.svc.Preview(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("preview failed", slog.String("page", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// StartRun handles POST /api/runs.
//
//	@Summary		Start a migration in the background
//	@Tags			runs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StartRunRequest	false	"Run options"
//	@Success		202		{object}	RunStatusResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [post]
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	opts := h.opts
	opts.Force = opts.Force || req.Force
	if req.Page != "" {
		opts.Page = req.Page
	}

	if err := h.svc.Start(h.baseCtx, opts, h.emit); err != nil {
		if errors.Is(err, apperr.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		} else {
			slog.Error("start run failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, RunStatusResponse{Running: true})
}

// RunStatus handles GET /api/runs.
//
//	@Summary		Report whether a migration is running
//	@Tags			runs
//	@Produce		json
//	@Success		200	{object}	RunStatusResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) RunStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RunStatusResponse{Running: h.svc.Running()})
}

// Rules handles GET /api/rules.
func (h *Handler) Rules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RulesResponse{Passes: h.svc.Rules()})
}
