package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// TextExtractor returns the plain text of a PDF document.
type TextExtractor interface {
	ExtractText(ctx context.Context, source []byte) (string, error)
}

// RunConfig is the read-only configuration of one generate action.
type RunConfig struct {
	APIKey string
	Prompt string
}

// Scheduler advances tables one pipeline run at a time.
type Scheduler struct {
	extractor TextExtractor
	generator models.NoteGenerator
	timeout   time.Duration
}

// NewScheduler creates a Scheduler. timeout bounds each collaborator call;
// zero means no bound beyond the caller's context.
func NewScheduler(extractor TextExtractor, generator models.NoteGenerator, timeout time.Duration) *Scheduler {
	return &Scheduler{
		extractor: extractor,
		generator: generator,
		timeout:   timeout,
	}
}

// Advance performs at most one unit of work on the table: it picks the
// processing job, or admits the first queued one, and runs the pipeline for
// it. It reports whether any job changed. Collaborator failures end in the
// job's failed status and never escape.
func (s *Scheduler) Advance(ctx context.Context, t *Table, cfg RunConfig) (didWork bool) {
	id, source, admitted, ok := t.claim()
	if !ok {
		return false
	}
	defer t.release()

	if admitted != nil {
		slog.Info("job admitted", "table", t.Key(), "job_id", id, "file", admitted.FileName)
	}
	t.flush()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline", "error", r, "table", t.Key(), "job_id", id)
			t.finish(id, models.JobStatusFailed, "", FailedMessage)
			didWork = true
		}
	}()

	s.run(ctx, t, id, source, cfg)
	return true
}

// run executes the pipeline with a cancellation checkpoint before every
// step that would commit further work.
func (s *Scheduler) run(ctx context.Context, t *Table, id string, source []byte, cfg RunConfig) {
	if t.cancelRequested(id) {
		s.cancelled(t, id, "before extraction")
		return
	}

	text, err := s.extract(ctx, source)
	if err != nil {
		slog.Warn("job failed", "table", t.Key(), "job_id", id, "error", err)
		s.ended(t.finish(id, models.JobStatusFailed, "", FailedMessage), t)
		return
	}

	if t.cancelRequested(id) {
		s.cancelled(t, id, "before generation")
		return
	}

	notes, err := s.generate(ctx, text, cfg)
	if err != nil {
		slog.Warn("job failed", "table", t.Key(), "job_id", id, "error", err)
		s.ended(t.finish(id, models.JobStatusFailed, "", FailedMessage), t)
		return
	}

	if t.cancelRequested(id) {
		s.cancelled(t, id, "after generation")
		return
	}

	s.ended(t.finish(id, models.JobStatusCompleted, notes, ""), t)
}

func (s *Scheduler) extract(ctx context.Context, source []byte) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	text, err := s.extractor.ExtractText(callCtx, source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailure, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document has no text", ErrExtractionFailure)
	}
	return text, nil
}

func (s *Scheduler) generate(ctx context.Context, text string, cfg RunConfig) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	notes, err := s.generator.GenerateNotes(callCtx, models.NoteRequest{
		APIKey: cfg.APIKey,
		Text:   text,
		Prompt: cfg.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	if strings.TrimSpace(notes) == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailure)
	}
	return notes, nil
}

// callContext derives the context for one collaborator call. It is not tied
// to cancel requests; those only take effect at the next checkpoint.
func (s *Scheduler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Scheduler) cancelled(t *Table, id, stage string) {
	t.finish(id, models.JobStatusCancelled, "", "")
	slog.Info("job cancelled", "table", t.Key(), "job_id", id, "stage", stage)
}

func (s *Scheduler) ended(info JobInfo, t *Table) {
	slog.Info("job finished", "table", t.Key(), "job_id", info.ID, "status", info.Status)
}
