package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	apierrors "github.com/olgasafonova/redmine-wiki-exporter/internal/errors"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/hierarchy"
	"github.com/olgasafonova/redmine-wiki-exporter/internal/redmine"
	"github.com/olgasafonova/redmine-wiki-exporter/metrics"
	"github.com/olgasafonova/redmine-wiki-exporter/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Project outcomes, used as metric labels
const (
	OutcomeExported = "exported"
	OutcomeNoWiki   = "no_wiki"
	OutcomeFailed   = "failed"
)

// Source is the subset of the Redmine client the exporter needs
type Source interface {
	ListProjects(ctx context.Context) ([]redmine.Project, error)
	ListWikiPages(ctx context.Context, identifier string) ([]redmine.WikiPageRef, error)
	GetWikiPage(ctx context.Context, identifier, title string) (*redmine.WikiPage, error)
	DownloadAttachment(ctx context.Context, attachment redmine.Attachment, w io.Writer) (int64, error)
}

// Exporter copies every wiki of a Redmine instance into a Writer's tree,
// one project at a time.
type Exporter struct {
	source   Source
	writer   *Writer
	logger   *slog.Logger
	projects map[string]bool
}

// Option configures the Exporter
type Option func(*Exporter)

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = l
	}
}

// WithProjects restricts Run to the given project identifiers
func WithProjects(identifiers ...string) Option {
	return func(e *Exporter) {
		for _, id := range identifiers {
			if id == "" {
				continue
			}
			if e.projects == nil {
				e.projects = make(map[string]bool)
			}
			e.projects[id] = true
		}
	}
}

// New creates an Exporter reading from source and writing through writer
func New(source Source, writer *Writer, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		writer: writer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProjectResult describes the export of one project
type ProjectResult struct {
	Identifier   string `json:"identifier"`
	Directory    string `json:"directory,omitempty"`
	Outcome      string `json:"outcome"`
	Pages        int    `json:"pages"`
	PagesSkipped int    `json:"pages_skipped,omitempty"`
	Fallbacks    int    `json:"fallbacks,omitempty"`
	Attachments  int    `json:"attachments,omitempty"`
	Bytes        int64  `json:"bytes,omitempty"`
}

// Summary describes a whole run
type Summary struct {
	Projects []ProjectResult `json:"projects"`
	Failed   []string        `json:"failed,omitempty"`
}

// Pages returns the number of pages written across all projects
func (s Summary) Pages() int {
	n := 0
	for _, p := range s.Projects {
		n += p.Pages
	}
	return n
}

// Run exports every project (or the ones selected with WithProjects).
// A project whose hierarchy is malformed or whose files cannot be written
// is reported and the run moves on; the returned error then joins those
// failures. Authentication and transport errors stop the run at once.
func (e *Exporter) Run(ctx context.Context) (Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "export.run")
	defer span.End()

	var summary Summary

	projects, err := e.source.ListProjects(ctx)
	if err != nil {
		if !apierrors.IsUnusableResponse(err) {
			tracing.RecordError(span, err)
			return summary, fmt.Errorf("list projects: %w", err)
		}
		metrics.DecodeFailures.WithLabelValues(redmine.EndpointProjects).Inc()
		e.logger.Warn("Project list response unusable, continuing with projects read so far",
			"projects", len(projects), "error", err)
	}

	selected := e.selectProjects(projects)
	span.SetAttributes(attribute.Int("export.projects", len(selected)))
	e.logger.Info("Exporting projects", "count", len(selected), "output_dir", e.writer.Root)

	var failures []error
	for _, p := range selected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := e.ExportProject(ctx, p.Identifier)
		summary.Projects = append(summary.Projects, result)
		if err == nil {
			continue
		}
		if !isProjectFailure(err) {
			tracing.RecordError(span, err)
			return summary, fmt.Errorf("export project %s: %w", p.Identifier, err)
		}

		e.logger.Error("Project export failed", "project", p.Identifier, "error", err)
		summary.Failed = append(summary.Failed, p.Identifier)
		failures = append(failures, fmt.Errorf("project %s: %w", p.Identifier, err))
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		tracing.RecordError(span, err)
		return summary, err
	}
	return summary, nil
}

// selectProjects applies the WithProjects filter, keeping server order
func (e *Exporter) selectProjects(projects []redmine.Project) []redmine.Project {
	if len(e.projects) == 0 {
		return projects
	}

	seen := make(map[string]bool, len(e.projects))
	var selected []redmine.Project
	for _, p := range projects {
		if e.projects[p.Identifier] {
			selected = append(selected, p)
			seen[p.Identifier] = true
		}
	}
	for id := range e.projects {
		if !seen[id] {
			e.logger.Warn("Requested project not found", "project", id)
		}
	}
	return selected
}

// ExportProject exports the wiki of one project. A project without wiki
// pages, or whose wiki the user cannot read, is skipped without creating
// any directory.
func (e *Exporter) ExportProject(ctx context.Context, identifier string) (ProjectResult, error) {
	ctx, span := tracing.StartSpan(ctx, "export.project")
	defer span.End()
	tracing.AddRedmineAttributes(span, redmine.EndpointWikiIndex, identifier)

	result := ProjectResult{Identifier: identifier, Outcome: OutcomeFailed}
	logger := e.logger.With("project", identifier)
	logger.Info("Exporting project")

	refs, err := e.source.ListWikiPages(ctx, identifier)
	switch {
	case err == nil:
	case apierrors.IsNotFound(err):
		refs = nil
	case apierrors.IsUnusableResponse(err):
		// Redmine answers 403 here when the wiki module is disabled or
		// the user may not view it
		metrics.DecodeFailures.WithLabelValues(redmine.EndpointWikiIndex).Inc()
		logger.Warn("Wiki index response unusable, treating as empty", "error", err)
		refs = nil
	default:
		tracing.RecordError(span, err)
		return result, err
	}

	if len(refs) == 0 {
		logger.Info("Project has no wiki, skipping")
		result.Outcome = OutcomeNoWiki
		metrics.RecordProject(OutcomeNoWiki)
		return result, nil
	}

	placements, err := hierarchy.Materialize(refs)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordProject(OutcomeFailed)
		return result, err
	}

	result.Directory = e.writer.PageDir(identifier, nil)
	for _, pl := range placements {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if pl.Resolution == hierarchy.FallbackToRoot {
			result.Fallbacks++
			metrics.HierarchyFallbacks.Inc()
			logger.Warn("Parent page not found, placing page at project root",
				"title", pl.Page.Title, "missing_parent", pl.MissingParent)
		}

		written, err := e.exportPage(ctx, identifier, pl, &result)
		if err != nil {
			tracing.RecordError(span, err)
			if isProjectFailure(err) {
				metrics.RecordProject(OutcomeFailed)
			}
			return result, err
		}
		if written {
			result.Pages++
		} else {
			result.PagesSkipped++
		}
	}

	result.Outcome = OutcomeExported
	metrics.RecordProject(OutcomeExported)
	span.SetAttributes(
		attribute.Int("export.pages", result.Pages),
		attribute.Int("export.pages_skipped", result.PagesSkipped),
	)
	logger.Info("Exported project", "pages", result.Pages, "skipped", result.PagesSkipped,
		"attachments", result.Attachments, "fallbacks", result.Fallbacks)

	return result, nil
}

// exportPage fetches one page and writes its files. It reports false when
// the page content was unusable and nothing was written.
func (e *Exporter) exportPage(ctx context.Context, identifier string, pl hierarchy.Placement[redmine.WikiPageRef], result *ProjectResult) (bool, error) {
	dir := e.writer.PageDir(identifier, pl.Segments)

	ctx, span := tracing.StartSpan(ctx, "export.page")
	defer span.End()
	tracing.AddPageAttributes(span, identifier, pl.Page.Title, dir)

	logger := e.logger.With("project", identifier, "title", pl.Page.Title)

	page, err := e.source.GetWikiPage(ctx, identifier, pl.Page.Title)
	if err != nil {
		if !apierrors.IsUnusableResponse(err) {
			return false, err
		}
		metrics.DecodeFailures.WithLabelValues(redmine.EndpointWikiPage).Inc()
		metrics.PagesSkipped.Inc()
		logger.Warn("Wiki page response unusable, skipping page", "error", err)
		return false, nil
	}

	if err := e.writer.EnsureDir(dir); err != nil {
		return false, err
	}

	var linked []string
	for _, a := range page.Attachments {
		n, err := e.downloadAttachment(ctx, dir, a)
		if err != nil {
			if apierrors.IsUnusableResponse(err) || apierrors.IsValidation(err) {
				logger.Warn("Attachment not downloaded", "filename", a.Filename, "error", err)
				continue
			}
			return false, err
		}
		result.Attachments++
		result.Bytes += n
		metrics.RecordAttachment(n)
		linked = append(linked, a.Filename)
	}

	if _, err := e.writer.WriteText(dir, page.Title, page.Text, linked); err != nil {
		return false, err
	}
	if _, err := e.writer.WriteMetadata(dir, page.Title, page.Metadata); err != nil {
		return false, err
	}

	metrics.PagesExported.Inc()
	metrics.ContentSize.Observe(float64(len(page.Text)))
	logger.Debug("Wrote page", "dir", dir, "attachments", len(linked))
	return true, nil
}

// downloadAttachment streams one attachment into dir. A partial file is
// removed when the download fails.
func (e *Exporter) downloadAttachment(ctx context.Context, dir string, a redmine.Attachment) (int64, error) {
	f, err := e.writer.CreateAttachment(dir, a.Filename)
	if err != nil {
		return 0, err
	}

	n, err := e.source.DownloadAttachment(ctx, a, f)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close attachment: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return 0, err
	}
	return n, nil
}

// isProjectFailure reports errors that fail only the current project.
// Anything else (authentication, transport, cancellation) stops the run.
func isProjectFailure(err error) bool {
	if errors.Is(err, hierarchy.ErrMalformedHierarchy) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}
