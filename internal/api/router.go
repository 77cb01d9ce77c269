package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	CreateSessionHandler http.HandlerFunc
	PromptHandler        http.HandlerFunc

	UploadHandler      http.HandlerFunc
	ListUploadsHandler http.HandlerFunc
	GenerateHandler    http.HandlerFunc

	ListJobsHandler  http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	CancelAllHandler http.HandlerFunc
	CancelJobHandler http.HandlerFunc
	RequeueHandler   http.HandlerFunc

	NotesMarkdownHandler http.HandlerFunc
	NotesPDFHandler      http.HandlerFunc
	NotesHTMLHandler     http.HandlerFunc

	ExportMarkdownHandler http.HandlerFunc
	ExportPDFHandler      http.HandlerFunc
	HistoryHandler        http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/prompt", orNotImplemented(deps.PromptHandler))

	// Session creation is public but rate limited per client IP.
	r.With(deps.RateLimit.Limit).Post("/api/v1/sessions", orNotImplemented(deps.CreateSessionHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/uploads", orNotImplemented(deps.UploadHandler))
		r.Get("/api/v1/uploads", orNotImplemented(deps.ListUploadsHandler))
		r.Post("/api/v1/generate", orNotImplemented(deps.GenerateHandler))

		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Post("/api/v1/jobs/cancel", orNotImplemented(deps.CancelAllHandler))
		r.Route("/api/v1/jobs/{fileKey}", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.GetJobHandler))
			r.Post("/cancel", orNotImplemented(deps.CancelJobHandler))
			r.Post("/requeue", orNotImplemented(deps.RequeueHandler))
			r.Get("/notes.md", orNotImplemented(deps.NotesMarkdownHandler))
			r.Get("/notes.pdf", orNotImplemented(deps.NotesPDFHandler))
			r.Get("/notes.html", orNotImplemented(deps.NotesHTMLHandler))
		})

		r.Get("/api/v1/export/notes.md", orNotImplemented(deps.ExportMarkdownHandler))
		r.Get("/api/v1/export/notes.pdf", orNotImplemented(deps.ExportPDFHandler))
		r.Get("/api/v1/history", orNotImplemented(deps.HistoryHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
