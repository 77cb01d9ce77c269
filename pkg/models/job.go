package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of one uploaded file.
type JobStatus string

const (
	JobStatusInQueue    JobStatus = "in_queue"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

var jobStatusLabels = map[JobStatus]string{
	JobStatusInQueue:    "In Queue",
	JobStatusProcessing: "Processing",
	JobStatusCompleted:  "Completed",
	JobStatusFailed:     "Failed",
	JobStatusCancelled:  "Cancelled",
}

// Label returns the status text shown to users.
func (s JobStatus) Label() string {
	if l, ok := jobStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	_, ok := jobStatusLabels[s]
	return ok
}

// IsTerminal reports whether no further progress can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRecord is the persisted mirror of an in-memory job. The in-memory table
// is authoritative; records exist for history only.
type JobRecord struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	SessionID    uuid.UUID  `db:"session_id"    json:"session_id"`
	FileKey      string     `db:"file_key"      json:"file_key"`
	FileName     string     `db:"file_name"     json:"file_name"`
	Status       JobStatus  `db:"status"        json:"status"`
	Notes        *string    `db:"notes"         json:"notes,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
