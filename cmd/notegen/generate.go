package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/kiranshivaraju/chapternotes/internal/ai"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/internal/extract"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/render"
	"github.com/kiranshivaraju/chapternotes/internal/session"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
	"github.com/spf13/cobra"
)

var errSomeFailed = errors.New("some files produced no notes")

type generateOptions struct {
	outDir     string
	promptFile string
	apiKey     string
	writePDF   bool
}

func newGenerateCmd(d deps) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <chapter.pdf>...",
		Short: "Generate notes for one or more PDF chapters",
		Long: `Queues every PDF and processes them one at a time. Notes are written as
<name>_notes.md (and <name>_notes.pdf with --pdf). Press Ctrl-C to cancel the
remaining files; the file in progress stops after its current step.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd.Context())
			defer stop()
			return runGenerate(ctx, d, opts, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "directory for the generated notes")
	cmd.Flags().StringVarP(&opts.promptFile, "prompt-file", "p", "", "file with the prompt (default: built-in study notes prompt)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "provider API key (default: from the environment)")
	cmd.Flags().BoolVar(&opts.writePDF, "pdf", false, "also write a PDF of each note")
	return cmd
}

// batch is a single table driven to completion; it implements queue.Work.
type batch struct {
	table *queue.Table
	run   queue.RunConfig
}

func (b batch) Table() *queue.Table { return b.table }
func (b batch) RunConfig() queue.RunConfig { return b.run }

// progress prints each status change.
type progress struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *progress) JobChanged(_ context.Context, _ string, job queue.JobInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%-40s %s\n", job.FileName, job.Status.Label())
}

func runGenerate(ctx context.Context, d deps, opts generateOptions, paths []string, out io.Writer) error {
	cfg, err := config.LoadStandalone()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey = cfg.AI.DefaultAPIKey()
	}
	if apiKey == "" && cfg.AI.NeedsAPIKey() {
		return fmt.Errorf("%w: pass --api-key or set the provider key in the environment", session.ErrMissingAPIKey)
	}

	prompt, err := ai.LoadPrompt(opts.promptFile)
	if err != nil {
		return fmt.Errorf("load prompt: %w", err)
	}

	var renderer *render.Renderer
	if opts.writePDF {
		if renderer, err = render.New(render.StyleFromConfig(cfg.Render)); err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
	}

	generator, err := d.newGenerator(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	table := queue.NewTable("cli", queue.WithObserver(&progress{out: out}))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !extract.LooksLikePDF(content) {
			return fmt.Errorf("%s: %w", path, session.ErrNotPDF)
		}
		name := filepath.Base(path)
		table.Add(queue.FileKey(name, content), name, content)
	}

	stopCancel := cancelOnDone(ctx, table)
	defer stopCancel()

	scheduler := queue.NewScheduler(d.extractor, generator, cfg.AI.InferenceTimeout)
	queue.NewRunner(scheduler).Drain(context.WithoutCancel(ctx), batch{
		table: table,
		run:   queue.RunConfig{APIKey: apiKey, Prompt: prompt},
	})

	return writeNotes(table.List(), opts.outDir, renderer, out)
}

func writeNotes(jobs []queue.JobInfo, outDir string, renderer *render.Renderer, out io.Writer) error {
	failed := 0
	for _, job := range jobs {
		if job.Status != models.JobStatusCompleted {
			failed++
			continue
		}
		mdPath := filepath.Join(outDir, session.NotesFileName(job.FileName, ".md"))
		if err := os.WriteFile(mdPath, []byte(job.Notes), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", mdPath, err)
		}
		fmt.Fprintf(out, "wrote %s\n", mdPath)

		if renderer == nil {
			continue
		}
		pdf, err := renderer.PDF(job.FileName, job.Notes)
		if err != nil {
			return fmt.Errorf("render %s: %w", job.FileName, err)
		}
		pdfPath := filepath.Join(outDir, session.NotesFileName(job.FileName, ".pdf"))
		if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pdfPath, err)
		}
		fmt.Fprintf(out, "wrote %s\n", pdfPath)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSomeFailed, failed, len(jobs))
	}
	return nil
}

// interruptible derives a context that ends on the first Ctrl-C.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// cancelOnDone cancels every unfinished job once ctx ends. The returned
// func stops watching.
func cancelOnDone(ctx context.Context, table *queue.Table) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
			if n := table.CancelAll(); n > 0 {
				fmt.Fprintf(os.Stderr, "cancelling %d remaining file(s)\n", n)
			}
		case <-stop:
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}
