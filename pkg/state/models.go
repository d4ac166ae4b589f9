package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
)

// Transport is the send side of one live viewer connection. Satisfied by
// *transport.Connection; tests substitute fakes.
type Transport interface {
	Send(message []byte)
	Close(err error)
}

// Session is the registry's view of one live connection: its identity, its
// transport and its current filter. The filter is nil until the viewer's
// first request-data and is swapped wholesale on every update, never mutated.
type Session struct {
	ID         uuid.UUID
	RemoteAddr string
	Transport  Transport
	Filter     *filter.Filter
	CreatedAt  time.Time
}
