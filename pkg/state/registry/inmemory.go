package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
)

// InMemory is the mutex-guarded in-process session registry. Reads used by
// the broadcast path (Snapshot, Get) copy session values out under the read
// lock, so fan-out never holds the lock across transport writes.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*state.Session

	logger *slog.Logger
}

var _ state.Registry = (*InMemory)(nil)

func NewInMemory(logger *slog.Logger) *InMemory {
	return &InMemory{
		sessions: make(map[uuid.UUID]*state.Session),
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

func (r *InMemory) Register(id uuid.UUID, tr state.Transport, remoteAddr string) *state.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &state.Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		Transport:  tr,
		CreatedAt:  time.Now(),
	}
	if _, exists := r.sessions[id]; exists {
		r.logger.Debug("Re-registering live session, filter reset", slog.String("connID", id.String()))
	}
	r.sessions[id] = sess
	r.logger.Debug("Session registered", slog.String("connID", id.String()), slog.String("remoteAddr", remoteAddr))
	return sess
}

func (r *InMemory) SetFilter(id uuid.UUID, f *filter.Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		// Disconnect raced the filter request. Nothing to do.
		r.logger.Debug("Dropped filter for unknown session", slog.String("connID", id.String()))
		return
	}
	sess.Filter = f
	r.logger.Debug("Session filter replaced", slog.String("connID", id.String()))
}

func (r *InMemory) Get(id uuid.UUID) (state.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return state.Session{}, false
	}
	return *sess, true
}

func (r *InMemory) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.logger.Debug("Session unregistered", slog.String("connID", id.String()))
}

func (r *InMemory) Snapshot() []state.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]state.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, *sess)
	}
	return out
}

func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *InMemory) CountByAddr(remoteAddr string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sess := range r.sessions {
		if sess.RemoteAddr == remoteAddr {
			n++
		}
	}
	return n
}
