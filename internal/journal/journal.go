// Package journal mirrors job table changes into Postgres and Redis. The
// in-memory tables stay authoritative: mirror errors are logged and dropped.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/chapternotes/internal/cache"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/store"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// ErrNoRecord is returned by LastKnown when neither backend knows the job.
var ErrNoRecord = errors.New("no record of job")

const (
	defaultTimeout   = 2 * time.Second
	defaultStatusTTL = 24 * time.Hour
)

// Recorder implements queue.Observer.
type Recorder struct {
	store     store.Store
	cache     cache.Cache
	timeout   time.Duration
	statusTTL time.Duration
}

type Option func(*Recorder)

func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithStatusTTL(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.statusTTL = d
		}
	}
}

// NewRecorder creates a Recorder. Either backend may be nil.
func NewRecorder(st store.Store, c cache.Cache, opts ...Option) *Recorder {
	r := &Recorder{
		store:     st,
		cache:     c,
		timeout:   defaultTimeout,
		statusTTL: defaultStatusTTL,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// JobChanged records one status change. tableKey must be a session id.
func (r *Recorder) JobChanged(ctx context.Context, tableKey string, job queue.JobInfo) {
	sessionID, err := uuid.Parse(tableKey)
	if err != nil {
		slog.Warn("journal: table key is not a session id", "table", tableKey, "job_id", job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if r.store != nil {
		if err := r.persist(ctx, sessionID, job); err != nil {
			slog.Warn("journal: persist job failed",
				"error", err, "session_id", sessionID, "job_id", job.ID, "status", job.Status)
		}
	}
	if r.cache != nil {
		if err := r.cache.SetJobStatus(ctx, sessionID, job.ID, string(job.Status), r.statusTTL); err != nil {
			slog.Warn("journal: cache job status failed",
				"error", err, "session_id", sessionID, "job_id", job.ID)
		}
	}
}

func (r *Recorder) persist(ctx context.Context, sessionID uuid.UUID, job queue.JobInfo) error {
	switch job.Status {
	case models.JobStatusInQueue:
		now := time.Now().UTC()
		return r.store.UpsertJob(ctx, &models.JobRecord{
			ID:        uuid.New(),
			SessionID: sessionID,
			FileKey:   job.ID,
			FileName:  job.FileName,
			Status:    models.JobStatusInQueue,
			CreatedAt: job.CreatedAt,
			UpdatedAt: now,
		})
	case models.JobStatusCompleted:
		return r.store.UpdateJobStatus(ctx, sessionID, job.ID, job.Status, store.WithNotes(job.Notes))
	case models.JobStatusFailed:
		return r.store.UpdateJobStatus(ctx, sessionID, job.ID, job.Status, store.WithErrorMessage(job.Error))
	default:
		return r.store.UpdateJobStatus(ctx, sessionID, job.ID, job.Status)
	}
}

// LastKnown returns the mirrored record of a job that is no longer held in
// memory, typically after a restart. When Postgres cannot answer, the cached
// status is returned on its own with only the key fields set.
func (r *Recorder) LastKnown(ctx context.Context, sessionID uuid.UUID, fileKey string) (*models.JobRecord, error) {
	if r.store != nil {
		rec, err := r.store.GetJob(ctx, sessionID, fileKey)
		switch {
		case err == nil:
			return rec, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNoRecord
		default:
			slog.Warn("journal: read job record failed",
				"error", err, "session_id", sessionID, "job_id", fileKey)
		}
	}
	if r.cache != nil {
		status, found, err := r.cache.GetJobStatus(ctx, sessionID, fileKey)
		if err != nil {
			slog.Warn("journal: read cached job status failed",
				"error", err, "session_id", sessionID, "job_id", fileKey)
		} else if found {
			return &models.JobRecord{
				SessionID: sessionID,
				FileKey:   fileKey,
				Status:    models.JobStatus(status),
			}, nil
		}
	}
	return nil, ErrNoRecord
}

var _ queue.Observer = (*Recorder)(nil)
