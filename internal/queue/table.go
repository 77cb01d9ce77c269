package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/kiranshivaraju/chapternotes/pkg/models"
)

// FailedMessage is the only failure detail surfaced to users.
const FailedMessage = "Note generation failed for this file. Please check the logs or try again."

// FileKey derives the job identifier for an uploaded file. Two uploads with
// the same name but different content get different keys.
func FileKey(name string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// JobInfo is a point-in-time copy of a job, safe to hand out of the table.
type JobInfo struct {
	ID              string           `json:"id"`
	FileName        string           `json:"file_name"`
	Status          models.JobStatus `json:"status"`
	Notes           string           `json:"notes,omitempty"`
	Error           string           `json:"error,omitempty"`
	CancelRequested bool             `json:"cancel_requested"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Observer is told about every status change, outside the table lock.
// Events of one table arrive one at a time in commit order. JobChanged must
// not modify the table it observes.
type Observer interface {
	JobChanged(ctx context.Context, tableKey string, job JobInfo)
}

type job struct {
	id       string
	fileName string
	source   []byte

	status          models.JobStatus
	notes           string
	errMsg          string
	cancelRequested bool

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

func (j *job) info() JobInfo {
	return JobInfo{
		ID:              j.id,
		FileName:        j.fileName,
		Status:          j.status,
		Notes:           j.notes,
		Error:           j.errMsg,
		CancelRequested: j.cancelRequested,
		CreatedAt:       j.createdAt,
		StartedAt:       j.startedAt,
		CompletedAt:     j.completedAt,
	}
}

// Table is the insertion-ordered set of jobs owned by one session.
// At most one job is processing at any instant. Safe for concurrent use.
type Table struct {
	key      string
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	order    []string
	jobs     map[string]*job
	inFlight bool
	outbox   []JobInfo

	// held while delivering; a committer waits here until its own event
	// has been delivered
	deliverMu sync.Mutex
}

type TableOption func(*Table)

func WithObserver(o Observer) TableOption {
	return func(t *Table) { t.observer = o }
}

func withClock(now func() time.Time) TableOption {
	return func(t *Table) { t.now = now }
}

// NewTable creates an empty table. key identifies the owner (a session id)
// in observer callbacks.
func NewTable(key string, opts ...TableOption) *Table {
	t := &Table{
		key:  key,
		now:  func() time.Time { return time.Now().UTC() },
		jobs: make(map[string]*job),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Key returns the owner key given to NewTable.
func (t *Table) Key() string { return t.key }

// Add queues a file. Adding an id that is already tracked is a no-op and
// reports false; the existing status and notes are preserved.
func (t *Table) Add(id, fileName string, source []byte) (JobInfo, bool) {
	t.mu.Lock()
	if existing, ok := t.jobs[id]; ok {
		info := existing.info()
		t.mu.Unlock()
		return info, false
	}
	j := &job{
		id:        id,
		fileName:  fileName,
		source:    source,
		status:    models.JobStatusInQueue,
		createdAt: t.now(),
	}
	t.jobs[id] = j
	t.order = append(t.order, id)
	info := j.info()
	t.emitLocked(info)
	t.mu.Unlock()

	t.flush()
	return info, true
}

// Get returns a copy of one job.
func (t *Table) Get(id string) (JobInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return j.info(), true
}

// List returns copies of all jobs in insertion order.
func (t *Table) List() []JobInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JobInfo, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.jobs[id].info())
	}
	return out
}

// HasPending reports whether any job is queued or processing.
func (t *Table) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.order {
		s := t.jobs[id].status
		if s == models.JobStatusInQueue || s == models.JobStatusProcessing {
			return true
		}
	}
	return false
}

// CancelOne requests cancellation of a queued or processing job and marks it
// cancelled. Terminal jobs are left untouched.
func (t *Table) CancelOne(id string) (JobInfo, error) {
	t.mu.Lock()
	j, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return JobInfo{}, ErrJobNotFound
	}
	info := j.info()
	if t.cancelLocked(j) {
		info = j.info()
		t.emitLocked(info)
	}
	t.mu.Unlock()

	t.flush()
	return info, nil
}

// CancelAll cancels every queued or processing job and returns how many
// changed. Completed and failed jobs are untouched.
func (t *Table) CancelAll() int {
	t.mu.Lock()
	n := 0
	for _, id := range t.order {
		j := t.jobs[id]
		if t.cancelLocked(j) {
			t.emitLocked(j.info())
			n++
		}
	}
	t.mu.Unlock()

	t.flush()
	return n
}

// Requeue moves a failed job back to the queue. Only failed jobs qualify;
// cancelled jobs stay cancelled.
func (t *Table) Requeue(id string) (JobInfo, error) {
	t.mu.Lock()
	j, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return JobInfo{}, ErrJobNotFound
	}
	if j.status != models.JobStatusFailed || j.cancelRequested {
		info := j.info()
		t.mu.Unlock()
		return info, ErrNotRequeueable
	}
	j.status = models.JobStatusInQueue
	j.errMsg = ""
	j.startedAt = nil
	j.completedAt = nil
	info := j.info()
	t.emitLocked(info)
	t.mu.Unlock()

	t.flush()
	return info, nil
}

// ExportAllMarkdown joins the notes of every completed job in insertion order,
// each under a heading with its file name, separated by horizontal rules.
// It reports false when no job has completed.
func (t *Table) ExportAllMarkdown() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var parts []string
	for _, id := range t.order {
		j := t.jobs[id]
		if j.status != models.JobStatusCompleted {
			continue
		}
		parts = append(parts, "# "+j.fileName+"\n\n"+j.notes)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n---\n\n"), true
}

// ExportAllPDF is not supported.
func (t *Table) ExportAllPDF() ([]byte, error) {
	return nil, ErrUnsupportedOperation
}

// cancelLocked sets the cancel flag and forces cancelled on a non-terminal
// job. Caller holds t.mu.
func (t *Table) cancelLocked(j *job) bool {
	if j.status.IsTerminal() {
		return false
	}
	j.cancelRequested = true
	j.status = models.JobStatusCancelled
	j.notes = ""
	now := t.now()
	j.completedAt = &now
	return true
}

// claim takes the single-flight slot and returns the active job, admitting
// the first queued job when nothing is processing.
func (t *Table) claim() (id string, source []byte, admitted *JobInfo, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight {
		return "", nil, nil, false
	}

	var active *job
	for _, jid := range t.order {
		if j := t.jobs[jid]; j.status == models.JobStatusProcessing {
			active = j
			break
		}
	}
	if active == nil {
		for _, jid := range t.order {
			if j := t.jobs[jid]; j.status == models.JobStatusInQueue {
				j.status = models.JobStatusProcessing
				now := t.now()
				j.startedAt = &now
				active = j
				info := j.info()
				admitted = &info
				t.emitLocked(info)
				break
			}
		}
	}
	if active == nil {
		return "", nil, nil, false
	}
	t.inFlight = true
	return active.id, active.source, admitted, true
}

func (t *Table) release() {
	t.mu.Lock()
	t.inFlight = false
	t.mu.Unlock()
}

func (t *Table) cancelRequested(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	return ok && j.cancelRequested
}

// finish commits a terminal status for the active job. A pending cancel
// request always wins: the job ends cancelled and notes are discarded.
func (t *Table) finish(id string, status models.JobStatus, notes, errMsg string) JobInfo {
	t.mu.Lock()
	j := t.jobs[id]
	changed := true
	switch {
	case j.cancelRequested:
		changed = j.status != models.JobStatusCancelled
		if changed {
			j.status = models.JobStatusCancelled
			j.notes = ""
			now := t.now()
			j.completedAt = &now
		}
	case j.status == models.JobStatusProcessing:
		j.status = status
		j.errMsg = errMsg
		if status == models.JobStatusCompleted {
			j.notes = notes
		}
		now := t.now()
		j.completedAt = &now
	default:
		changed = false
	}
	info := j.info()
	if changed {
		t.emitLocked(info)
	}
	t.mu.Unlock()

	t.flush()
	return info
}

// emitLocked queues an event for the observer. Caller holds t.mu, so the
// outbox order is the commit order.
func (t *Table) emitLocked(info JobInfo) {
	if t.observer != nil {
		t.outbox = append(t.outbox, info)
	}
}

// flush delivers queued events in order. It returns once every event
// committed before the call has been delivered, by this goroutine or by the
// one already flushing.
func (t *Table) flush() {
	if t.observer == nil {
		return
	}
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()
	for {
		t.mu.Lock()
		if len(t.outbox) == 0 {
			t.mu.Unlock()
			return
		}
		info := t.outbox[0]
		t.outbox[0] = JobInfo{}
		t.outbox = t.outbox[1:]
		t.mu.Unlock()

		t.observer.JobChanged(context.Background(), t.key, info)
	}
}
