package router

import "encoding/json"

// Event names on the viewer connection.
const (
	EventRequestData      = "request-data"
	EventInitialPositions = "initial-positions"
	EventPositions        = "positions"
)

type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// FilterPayload is the request-data body. PseudoIPs drives the device-id
// policy; From/To (RFC 3339) drive the time-range policy.
type FilterPayload struct {
	PseudoIPs []string `json:"pseudoIPs"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
}
