// Package handler holds the HTTP handlers of the notes API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/session"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// Sessions resolves the in-memory state of a session.
type Sessions interface {
	Get(id uuid.UUID) *session.Session
}

// Renderer turns Markdown notes into downloadable documents.
type Renderer interface {
	HTML(title, markdown string) ([]byte, error)
	PDF(title, markdown string) ([]byte, error)
}

// JobArchive looks up jobs the in-memory tables no longer hold.
type JobArchive interface {
	LastKnown(ctx context.Context, sessionID uuid.UUID, fileKey string) (*models.JobRecord, error)
}

type jobView struct {
	FileKey         string           `json:"file_key"`
	FileName        string           `json:"file_name"`
	Status          models.JobStatus `json:"status"`
	StatusLabel     string           `json:"status_label"`
	Error           string           `json:"error,omitempty"`
	CancelRequested bool             `json:"cancel_requested"`
	HasNotes        bool             `json:"has_notes"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at,omitzero"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	// Archived marks a record served from the mirror; downloads are not
	// available for it.
	Archived bool `json:"archived,omitempty"`
}

func newJobView(j queue.JobInfo, withNotes bool) jobView {
	v := jobView{
		FileKey:         j.ID,
		FileName:        j.FileName,
		Status:          j.Status,
		StatusLabel:     j.Status.Label(),
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
		HasNotes:        j.Status == models.JobStatusCompleted,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
	if withNotes {
		v.Notes = j.Notes
	}
	return v
}

func newArchivedView(rec *models.JobRecord) jobView {
	v := jobView{
		FileKey:     rec.FileKey,
		FileName:    rec.FileName,
		Status:      rec.Status,
		StatusLabel: rec.Status.Label(),
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Archived:    true,
	}
	if rec.ErrorMessage != nil {
		v.Error = *rec.ErrorMessage
	}
	if rec.Notes != nil {
		v.Notes = *rec.Notes
	}
	return v
}

func newJobViews(jobs []queue.JobInfo) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobView(j, false))
	}
	return out
}

// sessionFor returns the caller's session, writing a 401 when the request
// carries none.
func sessionFor(w http.ResponseWriter, r *http.Request, sessions Sessions) (*session.Session, bool) {
	id, ok := mw.GetSessionID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
		return nil, false
	}
	return sessions.Get(id), true
}

func fileKeyParam(r *http.Request) string {
	return chi.URLParam(r, "fileKey")
}

// writeJobError maps job table and session errors to responses.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, queue.ErrNotRequeueable):
		response.Error(w, http.StatusConflict, "NOT_REQUEUEABLE", "Only failed jobs can be requeued", nil)
	case errors.Is(err, session.ErrNotesUnavailable):
		response.Error(w, http.StatusConflict, "NOTES_UNAVAILABLE", "Notes are only available for completed jobs", nil)
	case errors.Is(err, queue.ErrUnsupportedOperation):
		response.Error(w, http.StatusNotImplemented, "UNSUPPORTED_OPERATION", "This export is not supported yet", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
