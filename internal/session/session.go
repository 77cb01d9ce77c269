// Package session keeps per-user state: staged uploads, the run
// configuration of the last generate action, and the job table.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/chapternotes/internal/extract"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

var (
	ErrMissingAPIKey    = errors.New("an API key is required")
	ErrNoFiles          = errors.New("no files uploaded")
	ErrMissingPrompt    = errors.New("a prompt is required")
	ErrNotPDF           = errors.New("only PDF files are accepted")
	ErrFileTooLarge     = errors.New("file exceeds the upload limit")
	ErrEmptyFile        = errors.New("file is empty")
	ErrNotesUnavailable = errors.New("notes are only available for completed jobs")
)

// File is one uploaded document.
type File struct {
	Name    string
	Content []byte
}

// StagedFile describes a file waiting for the next generate action.
type StagedFile struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Session is the state of one user. It implements queue.Work.
type Session struct {
	id      uuid.UUID
	table   *queue.Table
	manager *Manager

	mu         sync.Mutex
	staged     []File
	stagedKeys map[string]bool
	run        queue.RunConfig
	lastActive time.Time
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Table() *queue.Table { return s.table }

// RunConfig returns the API key and prompt of the latest generate action.
func (s *Session) RunConfig() queue.RunConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Upload validates files and adds them to the staged set. Either every file
// is staged or none is. Files already staged are skipped.
func (s *Session) Upload(files []File) ([]StagedFile, error) {
	for _, f := range files {
		if err := s.manager.validate(f); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	for _, f := range files {
		key := queue.FileKey(f.Name, f.Content)
		if s.stagedKeys[key] {
			continue
		}
		s.stagedKeys[key] = true
		s.staged = append(s.staged, f)
	}
	return s.stagedLocked(), nil
}

// Staged lists the files the next generate action will queue.
func (s *Session) Staged() []StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stagedLocked()
}

func (s *Session) stagedLocked() []StagedFile {
	out := make([]StagedFile, 0, len(s.staged))
	for _, f := range s.staged {
		out = append(out, StagedFile{Key: queue.FileKey(f.Name, f.Content), Name: f.Name, Size: len(f.Content)})
	}
	return out
}

// Generate queues every staged file with the given API key and prompt. An
// empty apiKey falls back to the server's key. Files queued earlier keep
// their status; only new jobs are returned.
func (s *Session) Generate(apiKey, prompt string) ([]queue.JobInfo, error) {
	if apiKey == "" {
		apiKey = s.manager.defaultKey
	}
	if apiKey == "" && s.manager.requireKey {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrMissingPrompt
	}

	s.mu.Lock()
	if len(s.staged) == 0 {
		s.mu.Unlock()
		return nil, ErrNoFiles
	}
	s.run = queue.RunConfig{APIKey: apiKey, Prompt: prompt}
	s.touchLocked()
	files := make([]File, len(s.staged))
	copy(files, s.staged)
	s.mu.Unlock()

	var added []queue.JobInfo
	for _, f := range files {
		if info, ok := s.table.Add(queue.FileKey(f.Name, f.Content), f.Name, f.Content); ok {
			added = append(added, info)
		}
	}
	s.manager.notify(s)
	return added, nil
}

func (s *Session) Jobs() []queue.JobInfo { return s.table.List() }

func (s *Session) Job(id string) (queue.JobInfo, error) {
	info, ok := s.table.Get(id)
	if !ok {
		return queue.JobInfo{}, queue.ErrJobNotFound
	}
	return info, nil
}

func (s *Session) CancelOne(id string) (queue.JobInfo, error) {
	s.touch()
	return s.table.CancelOne(id)
}

func (s *Session) CancelAll() int {
	s.touch()
	return s.table.CancelAll()
}

// Requeue puts a failed job back in the queue under the current run config.
func (s *Session) Requeue(id string) (queue.JobInfo, error) {
	s.touch()
	info, err := s.table.Requeue(id)
	if err != nil {
		return info, err
	}
	s.manager.notify(s)
	return info, nil
}

// Notes returns the notes of a completed job.
func (s *Session) Notes(id string) (queue.JobInfo, error) {
	info, err := s.Job(id)
	if err != nil {
		return info, err
	}
	if info.Status != models.JobStatusCompleted {
		return info, ErrNotesUnavailable
	}
	return info, nil
}

func (s *Session) ExportAllMarkdown() (string, bool) { return s.table.ExportAllMarkdown() }

func (s *Session) ExportAllPDF() ([]byte, error) { return s.table.ExportAllPDF() }

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now().UTC()
}

// NotesFileName maps an uploaded file name to its download name, for
// example "chapter1.pdf" to "chapter1_notes.md".
func NotesFileName(fileName, ext string) string {
	base := filepath.Base(fileName)
	if e := filepath.Ext(base); strings.EqualFold(e, ".pdf") {
		base = strings.TrimSuffix(base, e)
	}
	return base + "_notes" + ext
}

func looksLikePDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func (m *Manager) validate(f File) error {
	switch {
	case !looksLikePDFName(f.Name):
		return ErrNotPDF
	case len(f.Content) == 0:
		return ErrEmptyFile
	case m.maxUpload > 0 && int64(len(f.Content)) > m.maxUpload:
		return ErrFileTooLarge
	case !extract.LooksLikePDF(f.Content):
		return ErrNotPDF
	}
	return nil
}
