package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/chapternotes/internal/ai/mock"
	"github.com/kiranshivaraju/chapternotes/internal/config"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/session"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textExtractor struct{}

func (textExtractor) ExtractText(_ context.Context, source []byte) (string, error) {
	return strings.TrimPrefix(string(source), "%PDF-1.4\n"), nil
}

func testDeps(gen models.NoteGenerator) deps {
	return deps{
		newGenerator: func(config.AIConfig) (models.NoteGenerator, error) { return gen, nil },
		extractor:    textExtractor{},
	}
}

func writePDF(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"+text), 0o644))
	return path
}

func execute(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AI_PROVIDER", "ollama")
	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerate_WritesNotesInOrder(t *testing.T) {
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "notes")
	a := writePDF(t, in, "chapter1.pdf", "Photosynthesis")
	b := writePDF(t, in, "chapter2.pdf", "Respiration")

	out, err := execute(t, testDeps(mock.NewMockProvider()), "generate", a, b, "--out", outDir, "--pdf")
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(outDir, "chapter1_notes.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Photosynthesis"))

	pdf, err := os.ReadFile(filepath.Join(outDir, "chapter2_notes.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	assert.Less(t, strings.Index(out, "wrote "+filepath.Join(outDir, "chapter1_notes.md")),
		strings.Index(out, "wrote "+filepath.Join(outDir, "chapter2_notes.md")))
	assert.Contains(t, out, "Completed")
}

func TestGenerate_UsesPromptFile(t *testing.T) {
	in := t.TempDir()
	promptPath := filepath.Join(in, "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("Summarise briefly."), 0o644))
	path := writePDF(t, in, "a.pdf", "A")

	var got models.NoteRequest
	gen := &mock.MockProvider{Name_: "capture", GenerateFunc: func(_ context.Context, req models.NoteRequest) (string, error) {
		got = req
		return "# A", nil
	}}
	_, err := execute(t, testDeps(gen), "generate", path, "-o", t.TempDir(), "-p", promptPath, "--api-key", "k1")
	require.NoError(t, err)

	assert.Equal(t, "Summarise briefly.", got.Prompt)
	assert.Equal(t, "k1", got.APIKey)
	assert.Equal(t, "A", got.Text)
}

func TestGenerate_ReportsFailures(t *testing.T) {
	in := t.TempDir()
	outDir := t.TempDir()
	path := writePDF(t, in, "a.pdf", "A")

	out, err := execute(t, testDeps(mock.NewFailingProvider(assert.AnError)), "generate", path, "-o", outDir)
	require.ErrorIs(t, err, errSomeFailed)
	assert.Contains(t, out, "Failed")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := execute(t, testDeps(mock.NewMockProvider()), "generate", path)
	assert.ErrorIs(t, err, session.ErrNotPDF)
}

func TestGenerate_RequiresKeyForHostedProviders(t *testing.T) {
	path := writePDF(t, t.TempDir(), "a.pdf", "A")
	var out bytes.Buffer
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	cmd := newRootCmd(testDeps(mock.NewMockProvider()))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"generate", path})
	err := cmd.Execute()
	assert.ErrorIs(t, err, session.ErrMissingAPIKey)
}

func TestCancelOnDone_CancelsRemainingJobs(t *testing.T) {
	table := queue.NewTable("cli")
	table.Add("a", "a.pdf", nil)
	table.Add("b", "b.pdf", nil)

	ctx, cancel := context.WithCancel(context.Background())
	stop := cancelOnDone(ctx, table)
	cancel()
	assert.Eventually(t, func() bool { return !table.HasPending() }, time.Second, 5*time.Millisecond)
	stop()

	for _, j := range table.List() {
		assert.Equal(t, models.JobStatusCancelled, j.Status)
	}
}

func TestRender_PDFAndHTML(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "chapter1_notes.md")
	require.NoError(t, os.WriteFile(src, []byte("# Notes\n\n* point"), 0o644))

	out, err := execute(t, testDeps(nil), "render", src)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "chapter1_notes.pdf"))
	pdf, err := os.ReadFile(filepath.Join(dir, "chapter1_notes.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	htmlPath := filepath.Join(dir, "page.html")
	_, err = execute(t, testDeps(nil), "render", src, "--html", "-o", htmlPath)
	require.NoError(t, err)
	page, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>chapter1_notes</title>")
}
