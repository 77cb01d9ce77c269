package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 8

// Auth resolves session bearer tokens.
type Auth struct {
	store store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer token, looks up the session by token
// prefix, and sets session_id and key_prefix in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawToken := extractBearerToken(r)
		if rawToken == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}
		if len(rawToken) < keyPrefixLen || !strings.HasPrefix(rawToken, TokenPrefix) {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid session token format", nil)
			return
		}

		prefix := rawToken[:keyPrefixLen]
		sessions, err := a.store.GetSessionsByPrefix(r.Context(), prefix)
		if err != nil {
			slog.Error("session lookup failed", "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate session token", nil)
			return
		}

		for _, sess := range sessions {
			if bcrypt.CompareHashAndPassword([]byte(sess.TokenHash), []byte(rawToken)) != nil {
				continue
			}
			if rec, ok := w.(*statusRecorder); ok {
				rec.sessionID = sess.ID.String()
			}
			ctx := SetSessionID(r.Context(), sess.ID)
			ctx = setKeyPrefix(ctx, prefix)
			go func() {
				if err := a.store.TouchSession(context.Background(), sess.ID); err != nil {
					slog.Warn("touch session failed", "error", err, "session_id", sess.ID)
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		response.Error(w, http.StatusUnauthorized,
			"INVALID_TOKEN", "Invalid session token", nil)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
