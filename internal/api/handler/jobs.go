package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/chapternotes/internal/api/response"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
)

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
// Jobs are listed in upload order, without their notes.
func NewListJobsHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		response.JSON(w, newJobViews(sess.Jobs()))
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{fileKey}.
// Jobs missing from memory, for example after a restart, are looked up in
// archive when one is given.
func NewGetJobHandler(sessions Sessions, archive JobArchive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		fileKey := fileKeyParam(r)
		job, err := sess.Job(fileKey)
		if errors.Is(err, queue.ErrJobNotFound) && archive != nil {
			if rec, aerr := archive.LastKnown(r.Context(), sess.ID(), fileKey); aerr == nil {
				response.JSON(w, newArchivedView(rec))
				return
			}
		}
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.JSON(w, newJobView(job, true))
	}
}

// NewCancelAllHandler returns an http.HandlerFunc for POST /api/v1/jobs/cancel.
func NewCancelAllHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		n := sess.CancelAll()
		slog.Info("cancel all", "session_id", sess.ID(), "cancelled", n)
		response.JSON(w, map[string]any{
			"cancelled": n,
			"jobs":      newJobViews(sess.Jobs()),
		})
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{fileKey}/cancel. Finished jobs are returned unchanged.
func NewCancelJobHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		job, err := sess.CancelOne(fileKeyParam(r))
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.JSON(w, newJobView(job, false))
	}
}

// NewRequeueJobHandler returns an http.HandlerFunc for
// POST /api/v1/jobs/{fileKey}/requeue.
func NewRequeueJobHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		job, err := sess.Requeue(fileKeyParam(r))
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.Accepted(w, newJobView(job, false))
	}
}
