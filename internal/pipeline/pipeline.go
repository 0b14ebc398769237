package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/apatheia-labs/docscribe/internal/extract"
)

// Job identifies one document conversion: source PDF in, transcript
// artifact out. Artifact existence is the job's only completion signal.
type Job struct {
	SourcePath   string
	ArtifactPath string
}

// Sink is the append-only persisted artifact. Each append must be
// durably flushed before it returns (no handle held across pages).
type Sink interface {
	Exists(path string) bool
	WriteHeader(path, documentName string) error
	AppendPage(path string, index int, text string) error
}

// RunRecorder is an optional ledger of job runs (observability only; it
// never gates the skip decision).
type RunRecorder interface {
	Begin(ctx context.Context, id uuid.UUID, sourcePath, artifactPath string) error
	Finish(ctx context.Context, id uuid.UUID, status string, pages, degraded int) error
}

// Run statuses recorded in the journal.
const (
	StatusSkipped   = "skipped"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Pipeline drives one document through page extraction: pull pages in
// order, extract each under the retry policy, append each result to the
// sink. Single thread of control; no parallelism within a job.
type Pipeline struct {
	source    extract.PageSource
	extractor extract.PageExtractor
	sink      Sink
	retrier   *Retrier
	pacer     Pacer
	journal   RunRecorder // may be nil
	log       *slog.Logger
}

func New(source extract.PageSource, extractor extract.PageExtractor, sink Sink, retrier *Retrier, pacer Pacer, journal RunRecorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Pipeline{
		source:    source,
		extractor: extractor,
		sink:      sink,
		retrier:   retrier,
		pacer:     pacer,
		journal:   journal,
		log:       logger,
	}
}

// Run processes a job end to end.
//
// If the artifact already exists the whole job is skipped: the page
// source is never opened and the artifact bytes are untouched. A source
// that cannot be decoded aborts the job before any sink write, so a
// failed job never masquerades as complete on the next run. Page-level
// failures degrade to inline fallback markers and processing continues.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	runID := uuid.New()
	docName := documentName(job.SourcePath)

	if p.sink.Exists(job.ArtifactPath) {
		p.log.Info("pipeline.skip", "run_id", runID, "document", docName, "artifact", job.ArtifactPath)
		p.record(ctx, runID, job, StatusSkipped, 0, 0)
		return nil
	}

	if p.journal != nil {
		if err := p.journal.Begin(ctx, runID, job.SourcePath, job.ArtifactPath); err != nil {
			p.log.Warn("pipeline.journal_begin_failed", "run_id", runID, "error", err)
		}
	}

	reader, err := p.source.Open(ctx, job.SourcePath)
	if err != nil {
		p.record(ctx, runID, job, StatusAborted, 0, 0)
		return fmt.Errorf("open pages: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			p.log.Warn("pipeline.reader_close_failed", "run_id", runID, "error", cerr)
		}
	}()

	p.log.Info("pipeline.start", "run_id", runID, "document", docName, "artifact", job.ArtifactPath)

	if err := p.sink.WriteHeader(job.ArtifactPath, docName); err != nil {
		p.record(ctx, runID, job, StatusAborted, 0, 0)
		return fmt.Errorf("write header: %w", err)
	}

	var pages, degraded int
	for {
		// Pacing applies before every pull, success or not; the first
		// page passes immediately.
		if err := p.pacer.Wait(ctx); err != nil {
			p.record(ctx, runID, job, StatusAborted, pages, degraded)
			return err
		}

		page, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.record(ctx, runID, job, StatusAborted, pages, degraded)
			return fmt.Errorf("next page: %w", err)
		}

		text, fellBack, err := p.retrier.Run(ctx, page.Index, func(ctx context.Context) (extract.PageResult, error) {
			return p.extractor.ExtractPage(ctx, page)
		})
		if err != nil {
			// Cancellation mid-page: the page's result is abandoned,
			// nothing partial reaches the sink.
			p.record(ctx, runID, job, StatusAborted, pages, degraded)
			return err
		}
		if fellBack {
			degraded++
			p.log.Warn("pipeline.page.degraded", "run_id", runID, "page", page.Index)
		}

		if err := p.sink.AppendPage(job.ArtifactPath, page.Index, text); err != nil {
			p.record(ctx, runID, job, StatusAborted, pages, degraded)
			return fmt.Errorf("append page %d: %w", page.Index, err)
		}
		pages++
	}

	p.log.Info("pipeline.complete",
		"run_id", runID,
		"document", docName,
		"pages", pages,
		"degraded", degraded,
	)
	p.record(ctx, runID, job, StatusCompleted, pages, degraded)
	return nil
}

func (p *Pipeline) record(ctx context.Context, id uuid.UUID, job Job, status string, pages, degraded int) {
	if p.journal == nil {
		return
	}
	if status == StatusSkipped {
		if err := p.journal.Begin(ctx, id, job.SourcePath, job.ArtifactPath); err != nil {
			p.log.Warn("pipeline.journal_begin_failed", "run_id", id, "error", err)
			return
		}
	}
	if err := p.journal.Finish(ctx, id, status, pages, degraded); err != nil {
		p.log.Warn("pipeline.journal_finish_failed", "run_id", id, "status", status, "error", err)
	}
}

// documentName is the source file's stem, used in the artifact header.
func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
