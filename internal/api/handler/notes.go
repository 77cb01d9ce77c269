package handler

import (
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/session"
)

const (
	contentTypeMarkdown = "text/markdown; charset=utf-8"
	contentTypePDF      = "application/pdf"
	exportFileName      = "all_notes"
)

// NewNotesMarkdownHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{fileKey}/notes.md.
func NewNotesMarkdownHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		job, err := sess.Notes(fileKeyParam(r))
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.Attachment(w, contentTypeMarkdown, session.NotesFileName(job.FileName, ".md"), []byte(job.Notes))
	}
}

// NewNotesPDFHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{fileKey}/notes.pdf.
func NewNotesPDFHandler(sessions Sessions, renderer Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		job, err := sess.Notes(fileKeyParam(r))
		if err != nil {
			writeJobError(w, err)
			return
		}
		pdf, err := renderer.PDF(job.FileName, job.Notes)
		if err != nil {
			slog.Error("render pdf failed", "error", err, "session_id", sess.ID(), "job_id", job.ID)
			response.Error(w, http.StatusInternalServerError, "RENDER_FAILED", "Could not render the notes as PDF", nil)
			return
		}
		response.Attachment(w, contentTypePDF, session.NotesFileName(job.FileName, ".pdf"), pdf)
	}
}

// NewNotesHTMLHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{fileKey}/notes.html, the rendered preview.
func NewNotesHTMLHandler(sessions Sessions, renderer Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		job, err := sess.Notes(fileKeyParam(r))
		if err != nil {
			writeJobError(w, err)
			return
		}
		page, err := renderer.HTML(job.FileName, job.Notes)
		if err != nil {
			slog.Error("render html failed", "error", err, "session_id", sess.ID(), "job_id", job.ID)
			response.Error(w, http.StatusInternalServerError, "RENDER_FAILED", "Could not render the notes", nil)
			return
		}
		response.HTML(w, page)
	}
}

// NewExportMarkdownHandler returns an http.HandlerFunc for
// GET /api/v1/export/notes.md. It answers 204 when no job has completed.
func NewExportMarkdownHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		all, ok := sess.ExportAllMarkdown()
		if !ok {
			response.NoContent(w)
			return
		}
		response.Attachment(w, contentTypeMarkdown, exportFileName+".md", []byte(all))
	}
}

// NewExportPDFHandler returns an http.HandlerFunc for
// GET /api/v1/export/notes.pdf.
func NewExportPDFHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		pdf, err := sess.ExportAllPDF()
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.Attachment(w, contentTypePDF, exportFileName+".pdf", pdf)
	}
}
