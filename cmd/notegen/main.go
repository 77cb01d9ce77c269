// Command notegen turns PDF chapters into Markdown study notes from the
// command line, using the same job queue as the server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/chapternotes/internal/ai"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/internal/extract"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
	"github.com/spf13/cobra"
)

// deps are the collaborators the commands build on. Tests replace them.
type deps struct {
	newGenerator func(cfg config.AIConfig) (models.NoteGenerator, error)
	extractor    queue.TextExtractor
}

func defaultDeps() deps {
	return deps{
		newGenerator: func(cfg config.AIConfig) (models.NoteGenerator, error) {
			return ai.NewProvider(cfg)
		},
		extractor: extract.New(),
	}
}

func newRootCmd(d deps) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "notegen",
		Short: "Generate study notes from PDF chapters",
		Long: `notegen extracts the text of PDF chapters, sends it with a prompt to the
configured LLM provider and writes the returned Markdown notes next to each other
in an output directory. Provider settings come from the environment or a .env file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newGenerateCmd(d), newRenderCmd())
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
