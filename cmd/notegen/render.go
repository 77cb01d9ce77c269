package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/internal/render"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var out string
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "render <notes.md>",
		Short: "Render a Markdown notes file as PDF or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			ext := ".pdf"
			if asHTML {
				ext = ".html"
			}
			if out == "" {
				out = strings.TrimSuffix(src, filepath.Ext(src)) + ext
			}
			if err := renderFile(src, out, asHTML); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: input name with .pdf or .html)")
	cmd.Flags().BoolVar(&asHTML, "html", false, "write a standalone HTML page instead of a PDF")
	return cmd
}

func renderFile(src, dst string, asHTML bool) error {
	markdown, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	cfg, err := config.LoadStandalone()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	renderer, err := render.New(render.StyleFromConfig(cfg.Render))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	var doc []byte
	if asHTML {
		doc, err = renderer.HTML(title, string(markdown))
	} else {
		doc, err = renderer.PDF(title, string(markdown))
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", src, err)
	}
	if err := os.WriteFile(dst, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
