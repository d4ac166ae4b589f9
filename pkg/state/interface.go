package state

import (
	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
)

// Registry is the process-wide map from live connections to their filters.
// It is the only mutable state shared between the session lifecycle and the
// broadcast path, so every method must be safe for concurrent use.
type Registry interface {
	// Register adds a session with no filter. Re-registering a live id
	// resets its filter to absent.
	Register(id uuid.UUID, tr Transport, remoteAddr string) *Session

	// SetFilter replaces the session's filter wholesale. Setting a filter
	// on an unknown id is a silent no-op: a disconnect can race an
	// in-flight request-data and must not fail.
	SetFilter(id uuid.UUID, f *filter.Filter)

	// Get returns a copy of the session.
	Get(id uuid.UUID) (Session, bool)

	// Unregister removes the session. Idempotent; unknown ids are a no-op.
	Unregister(id uuid.UUID)

	// Snapshot returns a point-in-time copy of all sessions. Broadcast
	// iteration never observes a session added or removed mid-pass.
	Snapshot() []Session

	Len() int

	// CountByAddr reports the live sessions from one remote address.
	CountByAddr(remoteAddr string) int
}
