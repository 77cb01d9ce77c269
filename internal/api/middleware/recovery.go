package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
)

// Recovery turns a handler panic into a 500 envelope. When the handler had
// already started a response (a download, say) the connection is aborted
// instead, so the client never sees a truncated file with a 200 status.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(p)
			}

			attrs := []any{
				"error", p,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			}
			rec, _ := w.(*statusRecorder)
			if rec != nil && rec.sessionID != "" {
				attrs = append(attrs, "session_id", rec.sessionID)
			}
			slog.Error("panic recovered", attrs...)

			if rec != nil && rec.wrote {
				panic(http.ErrAbortHandler)
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
