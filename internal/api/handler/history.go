package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/store"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// JobLister reads persisted job records.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.JobRecord, int, error)
}

// NewHistoryHandler returns an http.HandlerFunc for GET /api/v1/history.
// Query parameters: status, page, limit.
func NewHistoryHandler(jobs JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := mw.GetSessionID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		q := r.URL.Query()
		status := models.JobStatus(q.Get("status"))
		if status != "" && !status.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown status filter", nil)
			return
		}

		page := 1
		if v := q.Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
				return
			}
			page = n
		}
		limit := defaultHistoryLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		records, total, err := jobs.ListJobs(r.Context(), store.JobFilter{
			SessionID: sessionID,
			Status:    status,
			Page:      page,
			Limit:     limit,
		})
		if err != nil {
			slog.Error("list job history failed", "error", err, "session_id", sessionID)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load history", nil)
			return
		}
		if records == nil {
			records = []*models.JobRecord{}
		}
		response.Collection(w, records, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}
