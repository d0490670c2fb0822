// Package migrate converts the wiki of a Trac environment into a tree of
// Markdown files.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tracmark/internal/apperr"
	"github.com/starford/tracmark/internal/attachments"
	"github.com/starford/tracmark/internal/markup"
	"github.com/starford/tracmark/internal/models"
	"github.com/starford/tracmark/internal/parser"
	"github.com/starford/tracmark/internal/state"
	"github.com/starford/tracmark/internal/storage"
	"github.com/starford/tracmark/internal/trac"
)

// Source supplies pages and attachments. *trac.DB implements it.
type Source interface {
	Pages(ctx context.Context, since time.Time) ([]models.Page, error)
	Page(ctx context.Context, name string) (*models.Page, error)
	PagesWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Attachments(ctx context.Context) ([]models.Attachment, error)
	PageAttachments(ctx context.Context, page string) ([]models.Attachment, error)
}

var _ Source = (*trac.DB)(nil)

// Config holds the output settings of a Service.
type Config struct {
	Namespaces     markup.Namespaces
	Extension      string
	AttachmentsURL string
}

// Options select the pages of one run.
type Options struct {
	Since   time.Time
	Page    string
	Ignore  []string
	Force   bool
	Workers int
}

// Failure names a page that could not be migrated.
type Failure struct {
	Page  string `json:"page"`
	Error string `json:"error"`
}

// Summary describes a finished run.
type Summary struct {
	Converted   int                 `json:"converted"`
	Skipped     int                 `json:"skipped"`
	Excluded    int                 `json:"excluded"`
	Failures    []Failure           `json:"failures"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    string              `json:"duration"`
}

// Service runs migrations and single-page conversions.
type Service struct {
	src     Source
	ledger  *state.Ledger
	wiki    storage.Provider
	files   storage.Provider
	cfg     Config
	preview *markup.Pipeline
	logger  *slog.Logger
	running atomic.Bool
}

// NewService validates the link namespaces and creates a Service. Markdown
// goes to wiki, attachments to files.
func NewService(src Source, ledger *state.Ledger, wiki, files storage.Provider, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Extension == "" {
		cfg.Extension = "md"
	}
	preview, err := markup.New(cfg.Namespaces, markup.WithPageIndex(src))
	if err != nil {
		return nil, err
	}
	return &Service{
		src:     src,
		ledger:  ledger,
		wiki:    wiki,
		files:   files,
		cfg:     cfg,
		preview: preview,
		logger:  logger,
	}, nil
}

// Running reports whether a run is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Run migrates the selected pages and blocks until done. The first page that
// fails stops the run; pages already written stay recorded in the ledger.
func (s *Service) Run(ctx context.Context, opts Options, emit EventFunc) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, apperr.ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.run(ctx, opts, emit)
}

// Start launches a run in the background. It fails immediately when another
// run is in progress.
func (s *Service) Start(ctx context.Context, opts Options, emit EventFunc) error {
	if !s.running.CompareAndSwap(false, true) {
		return apperr.ErrRunInProgress
	}
	go func() {
		defer s.running.Store(false)
		if _, err := s.run(ctx, opts, emit); err != nil {
			s.logger.Error("migration failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Service) run(ctx context.Context, opts Options, emit EventFunc) (*Summary, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	sum := &Summary{StartedAt: time.Now().UTC(), Failures: []Failure{}, Diagnostics: []models.Diagnostic{}}

	pages, atts, err := s.selectPages(ctx, opts, sum)
	if err != nil {
		return nil, err
	}
	known, err := s.src.PagesWithPrefix(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("migrate: list page names: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[name] = struct{}{}
	}

	inv := attachments.NewInventory()
	for _, a := range atts {
		inv.Add(a)
	}
	pipeline, err := markup.New(s.cfg.Namespaces,
		markup.WithPageIndex(s.src),
		markup.WithAttachments(attachments.NewResolver(inv, s.files, s.cfg.AttachmentsURL)),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("migration started",
		slog.Int("pages", len(pages)),
		slog.Int("attachments", len(atts)),
		slog.Bool("force", opts.Force))
	emit(Event{Kind: EventRunStarted, Total: len(pages)})

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for _, page := range pages {
		g.Go(func() error {
			res, err := s.migratePage(gctx, pipeline, inv, page, knownSet, opts.Force)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && gctx.Err() != nil && errors.Is(err, context.Canceled):
				return err
			case err != nil:
				sum.Failures = append(sum.Failures, Failure{Page: page.Name, Error: err.Error()})
				s.logger.Error("page failed", slog.String("page", page.Name), slog.String("error", err.Error()))
				if mErr := s.ledger.MarkFailed(context.WithoutCancel(gctx), page.Name, page.Version, err); mErr != nil {
					s.logger.Warn("ledger update failed", slog.String("page", page.Name), slog.String("error", mErr.Error()))
				}
				emit(Event{Kind: EventPageFailed, Page: page.Name, Error: err.Error()})
				return err
			case res.skipped:
				sum.Skipped++
				emit(Event{Kind: EventPageSkipped, Page: page.Name})
			default:
				sum.Converted++
				emit(Event{Kind: EventPageConverted, Page: page.Name, Written: res.written})
			}
			for _, d := range res.diags {
				s.logger.Warn("diagnostic",
					slog.String("page", d.Document),
					slog.String("kind", d.Kind),
					slog.String("subject", d.Subject),
					slog.String("message", d.Message))
			}
			sum.Diagnostics = append(sum.Diagnostics, res.diags...)
			return nil
		})
	}
	runErr := g.Wait()

	sum.Duration = time.Since(sum.StartedAt).Round(time.Millisecond).String()
	s.logger.Info("migration finished",
		slog.Int("converted", sum.Converted),
		slog.Int("skipped", sum.Skipped),
		slog.Int("excluded", sum.Excluded),
		slog.Int("failed", len(sum.Failures)),
		slog.Int("diagnostics", len(sum.Diagnostics)),
		slog.String("duration", sum.Duration))
	emit(Event{Kind: EventRunFinished, Summary: sum})

	if runErr != nil {
		return sum, fmt.Errorf("migrate: %w", runErr)
	}
	return sum, nil
}

func (s *Service) selectPages(ctx context.Context, opts Options, sum *Summary) ([]models.Page, []models.Attachment, error) {
	if opts.Page != "" {
		p, err := s.src.Page(ctx, opts.Page)
		if err != nil {
			return nil, nil, err
		}
		atts, err := s.src.PageAttachments(ctx, p.Name)
		if err != nil {
			return nil, nil, err
		}
		return []models.Page{*p}, atts, nil
	}

	excl, err := trac.NewExcluder(opts.Ignore)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.src.Pages(ctx, opts.Since)
	if err != nil {
		return nil, nil, err
	}
	selected := make(map[string]struct{}, len(all))
	pages := make([]models.Page, 0, len(all))
	for _, p := range all {
		if pattern, ok := excl.Match(p.Name); ok {
			s.logger.Info("page excluded", slog.String("page", p.Name), slog.String("pattern", pattern))
			sum.Excluded++
			continue
		}
		selected[p.Name] = struct{}{}
		pages = append(pages, p)
	}

	allAtts, err := s.src.Attachments(ctx)
	if err != nil {
		return nil, nil, err
	}
	atts := make([]models.Attachment, 0, len(allAtts))
	for _, a := range allAtts {
		if _, ok := selected[a.Owner]; ok {
			atts = append(atts, a)
		}
	}
	return pages, atts, nil
}

type pageResult struct {
	skipped bool
	written bool
	diags   []models.Diagnostic
}

func (s *Service) migratePage(ctx context.Context, p *markup.Pipeline, inv *attachments.Inventory, page models.Page, known map[string]struct{}, force bool) (pageResult, error) {
	rel := s.outputPath(page.Name)

	rec, err := s.ledger.Get(ctx, page.Name)
	if err != nil {
		return pageResult{}, err
	}
	exists, err := s.wiki.Exists(rel)
	if err != nil {
		return pageResult{}, err
	}
	if !force && exists && rec != nil && rec.Status == state.StatusMigrated && rec.Version >= page.Version {
		inv.Discard(page.Name)
		return pageResult{skipped: true}, nil
	}

	res, err := p.Convert(ctx, page)
	if err != nil {
		return pageResult{}, err
	}

	fp := state.Fingerprint(res.Text)
	out := pageResult{diags: res.Diagnostics}
	if force || !exists || rec == nil || rec.Fingerprint != fp {
		if err := s.wiki.Write(rel, []byte(res.Text)); err != nil {
			return pageResult{}, err
		}
		out.written = true
	}
	if err := s.ledger.MarkMigrated(ctx, page.Name, page.Version, fp); err != nil {
		return pageResult{}, err
	}

	out.diags = append(out.diags, s.danglingLinks(page.Name, res.Text, known)...)
	return out, nil
}

// danglingLinks reports wiki links to pages that do not exist in Trac.
func (s *Service) danglingLinks(page, text string, known map[string]struct{}) []models.Diagnostic {
	var out []models.Diagnostic
	for _, target := range parser.Targets(parser.Parse([]byte(text)).Links, s.cfg.Namespaces.Wiki) {
		if _, ok := known[target]; ok {
			continue
		}
		out = append(out, models.Diagnostic{
			Document: page,
			Kind:     models.KindDanglingLink,
			Subject:  target,
			Message:  "link to a wiki page that does not exist",
		})
	}
	return out
}

// outputPath maps a page name to its Markdown file below the wiki root.
func (s *Service) outputPath(name string) string {
	return name + "." + s.cfg.Extension
}
