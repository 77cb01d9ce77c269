package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateSession(ctx context.Context, sess *models.Session) error
	GetSessionsByPrefix(ctx context.Context, prefix string) ([]*models.Session, error)
	TouchSession(ctx context.Context, id uuid.UUID) error

	UpsertJob(ctx context.Context, job *models.JobRecord) error
	GetJob(ctx context.Context, sessionID uuid.UUID, fileKey string) (*models.JobRecord, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.JobRecord, int, error)
	UpdateJobStatus(ctx context.Context, sessionID uuid.UUID, fileKey string, status models.JobStatus, opts ...JobUpdateOption) error
}

type JobFilter struct {
	SessionID uuid.UUID
	Status    models.JobStatus
	Page      int
	Limit     int
}

// JobUpdate holds the optional columns of a status update.
type JobUpdate struct {
	Notes        *string
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

func WithNotes(notes string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Notes = &notes
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}

// ApplyJobUpdateOptions folds opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
