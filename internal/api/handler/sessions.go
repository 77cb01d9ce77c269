package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// SessionCreator persists new sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, sess *models.Session) error
}

type createSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCreateSessionHandler returns an http.HandlerFunc for POST /api/v1/sessions.
// The raw token is returned once and never stored.
func NewCreateSessionHandler(st SessionCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := mw.NewSessionToken()
		if err != nil {
			slog.Error("mint session token failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", nil)
			return
		}

		now := time.Now().UTC()
		sess := &models.Session{
			ID:          uuid.New(),
			TokenHash:   tok.Hash,
			TokenPrefix: tok.Prefix,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.CreateSession(r.Context(), sess); err != nil {
			slog.Error("create session failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", nil)
			return
		}

		slog.Info("session created", "session_id", sess.ID)
		response.Created(w, createSessionResponse{
			SessionID: sess.ID,
			Token:     tok.Raw,
			CreatedAt: now,
		})
	}
}
