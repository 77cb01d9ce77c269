package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
)

// Manager maps session ids to sessions, creating them on first use.
type Manager struct {
	observer   queue.Observer
	onWork     func(queue.Work)
	defaultKey string
	requireKey bool
	maxUpload  int64

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

type Option func(*Manager)

// WithObserver attaches o to every job table the manager creates.
func WithObserver(o queue.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithNotifier registers fn to be told when a session has new work.
func WithNotifier(fn func(queue.Work)) Option {
	return func(m *Manager) { m.onWork = fn }
}

// WithDefaultAPIKey sets the key used when a generate action brings none.
// required controls whether generating without any key is an error.
func WithDefaultAPIKey(key string, required bool) Option {
	return func(m *Manager) {
		m.defaultKey = key
		m.requireKey = required
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(m *Manager) { m.maxUpload = n }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		requireKey: true,
		sessions:   make(map[uuid.UUID]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the session for id, creating an empty one if needed.
func (m *Manager) Get(id uuid.UUID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}

	var opts []queue.TableOption
	if m.observer != nil {
		opts = append(opts, queue.WithObserver(m.observer))
	}
	s := &Session{
		id:         id,
		table:      queue.NewTable(id.String(), opts...),
		manager:    m,
		stagedKeys: make(map[string]bool),
		lastActive: time.Now().UTC(),
	}
	m.sessions[id] = s
	return s
}

// Pending lists sessions with queued or processing jobs, oldest activity first.
func (m *Manager) Pending() []queue.Work {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].LastActive().Before(all[j].LastActive()) })

	var out []queue.Work
	for _, s := range all {
		if s.table.HasPending() {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) notify(s *Session) {
	if m.onWork != nil {
		m.onWork(s)
	}
}
