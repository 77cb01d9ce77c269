package queue

import (
	"context"
	"testing"
	"time"

	"github.com/kiranshivaraju/chapternotes/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWork struct {
	table *Table
	cfg   RunConfig
}

func (w testWork) Table() *Table { return w.table }
func (w testWork) RunConfig() RunConfig { return w.cfg }

func allDone(tbl *Table) func() bool {
	return func() bool { return !tbl.HasPending() }
}

func TestRunner_NotifyDrainsTable(t *testing.T) {
	gen := &mockGenerator{}
	r := NewRunner(newTestScheduler(&mockExtractor{}, gen), WithWorkers(2))
	r.Start(context.Background())
	defer r.Shutdown(context.Background())

	tbl := NewTable("s1")
	tbl.Add("c1", "chapter1.pdf", []byte("one"))
	tbl.Add("c2", "chapter2.pdf", []byte("two"))
	r.Notify(testWork{table: tbl, cfg: testRun})

	require.Eventually(t, allDone(tbl), 2*time.Second, 5*time.Millisecond)
	for _, j := range tbl.List() {
		assert.Equal(t, models.JobStatusCompleted, j.Status)
	}
	assert.Equal(t, 2, gen.Calls())
}

func TestRunner_SweepPicksUpPendingWork(t *testing.T) {
	tbl := NewTable("s1")
	tbl.Add("c1", "chapter1.pdf", []byte("one"))
	pending := func() []Work {
		if tbl.HasPending() {
			return []Work{testWork{table: tbl, cfg: testRun}}
		}
		return nil
	}

	r := NewRunner(newTestScheduler(&mockExtractor{}, &mockGenerator{}),
		WithSweep(pending, 10*time.Millisecond))
	r.Start(context.Background())
	defer r.Shutdown(context.Background())

	require.Eventually(t, allDone(tbl), 2*time.Second, 5*time.Millisecond)
	job, _ := tbl.Get("c1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestRunner_CancelAllStopsRemainingJobs(t *testing.T) {
	tbl := NewTable("s1")
	for _, id := range []string{"c1", "c2", "c3"} {
		tbl.Add(id, id+".pdf", []byte(id))
	}
	started := make(chan struct{})
	release := make(chan struct{})
	gen := &mockGenerator{fn: func(_ context.Context, _ models.NoteRequest) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "# Notes", nil
	}}

	r := NewRunner(newTestScheduler(&mockExtractor{}, gen))
	r.Start(context.Background())
	defer r.Shutdown(context.Background())
	r.Notify(testWork{table: tbl, cfg: testRun})

	<-started
	assert.Equal(t, 3, tbl.CancelAll())
	close(release)

	require.Eventually(t, allDone(tbl), 2*time.Second, 5*time.Millisecond)
	for _, j := range tbl.List() {
		assert.Equal(t, models.JobStatusCancelled, j.Status, j.ID)
		assert.Empty(t, j.Notes)
	}
	assert.Equal(t, 1, gen.Calls(), "no further generation after cancel")
}

func TestRunner_ShutdownLeavesQueuedJobs(t *testing.T) {
	tbl := NewTable("s1")
	for _, id := range []string{"c1", "c2", "c3"} {
		tbl.Add(id, id+".pdf", []byte(id))
	}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gen := &mockGenerator{fn: func(_ context.Context, _ models.NoteRequest) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "# Notes", nil
	}}

	r := NewRunner(newTestScheduler(&mockExtractor{}, gen))
	r.Start(context.Background())
	r.Notify(testWork{table: tbl, cfg: testRun})
	<-started

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		r.Shutdown(context.Background())
	}()
	require.Eventually(t, r.isClosed, time.Second, time.Millisecond)
	close(release)
	<-stopped

	statuses := map[string]models.JobStatus{}
	for _, j := range tbl.List() {
		statuses[j.ID] = j.Status
	}
	assert.Equal(t, map[string]models.JobStatus{
		"c1": models.JobStatusCompleted,
		"c2": models.JobStatusInQueue,
		"c3": models.JobStatusInQueue,
	}, statuses)
	assert.Equal(t, 1, gen.Calls())
}

func TestRunner_ShutdownIsIdempotent(t *testing.T) {
	r := NewRunner(newTestScheduler(&mockExtractor{}, &mockGenerator{}))
	r.Start(context.Background())
	r.Shutdown(context.Background())
	r.Shutdown(context.Background())

	// notifications after shutdown are dropped
	tbl := NewTable("s1")
	tbl.Add("c1", "chapter1.pdf", nil)
	r.Notify(testWork{table: tbl, cfg: testRun})
	assert.True(t, tbl.HasPending())
}

func TestRunner_Drain(t *testing.T) {
	r := NewRunner(newTestScheduler(&mockExtractor{}, &mockGenerator{}))
	tbl := NewTable("s1")
	tbl.Add("c1", "chapter1.pdf", []byte("one"))
	tbl.Add("c2", "chapter2.pdf", []byte("two"))

	assert.Equal(t, 2, r.Drain(context.Background(), testWork{table: tbl, cfg: testRun}))
	assert.Zero(t, r.Drain(context.Background(), testWork{table: tbl, cfg: testRun}))
}

func TestRunner_DrainStopsOnContext(t *testing.T) {
	r := NewRunner(newTestScheduler(&mockExtractor{}, &mockGenerator{}))
	tbl := NewTable("s1")
	tbl.Add("c1", "chapter1.pdf", []byte("one"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, r.Drain(ctx, testWork{table: tbl, cfg: testRun}))
	assert.True(t, tbl.HasPending())
}
