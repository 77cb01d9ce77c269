package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/session"
)

type generateRequest struct {
	APIKey string  `json:"api_key"`
	Prompt *string `json:"prompt"`
}

// NewGenerateHandler returns an http.HandlerFunc for POST /api/v1/generate.
// A request without a prompt uses defaultPrompt; an explicitly blank prompt
// is rejected.
func NewGenerateHandler(sessions Sessions, defaultPrompt string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		prompt := defaultPrompt
		if req.Prompt != nil {
			prompt = *req.Prompt
		}

		added, err := sess.Generate(req.APIKey, prompt)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrMissingAPIKey):
				response.Error(w, http.StatusBadRequest, "MISSING_API_KEY", "An API key is required", nil)
			case errors.Is(err, session.ErrNoFiles):
				response.Error(w, http.StatusBadRequest, "NO_FILES", "Upload at least one PDF first", nil)
			case errors.Is(err, session.ErrMissingPrompt):
				response.Error(w, http.StatusBadRequest, "MISSING_PROMPT", "The prompt cannot be empty", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		slog.Info("generation queued", "session_id", sess.ID(), "new_jobs", len(added))
		response.Accepted(w, map[string]any{
			"queued": newJobViews(added),
			"jobs":   newJobViews(sess.Jobs()),
		})
	}
}

// NewPromptHandler returns an http.HandlerFunc for GET /api/v1/prompt, the
// prompt a generate request uses when it brings none.
func NewPromptHandler(defaultPrompt string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, map[string]string{"prompt": defaultPrompt})
	}
}
