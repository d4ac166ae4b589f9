package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/geojson"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
)

// PositionSource serves last-known position snapshots. Implemented by the
// Redis-backed store; tests substitute fakes.
type PositionSource interface {
	FilteredPositions(ctx context.Context, f *filter.Filter) ([]position.Record, error)
}

// EventRouter dispatches messages arriving on viewer connections. The wire
// protocol has a single inbound event, request-data, which replaces the
// connection's filter and answers with a one-shot snapshot.
type EventRouter struct {
	logger   *slog.Logger
	registry state.Registry
	source   PositionSource
	policy   filter.Policy
	geoJSON  bool
}

func NewEventRouter(logger *slog.Logger, registry state.Registry, source PositionSource, policy filter.Policy, geoJSON bool) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		registry: registry,
		source:   source,
		policy:   policy,
		geoJSON:  geoJSON,
	}
}

func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		r.logger.Warn("Failed to unmarshal client message", "connID", connID, "error", err)
		return
	}

	switch clientMsg.Event {
	case EventRequestData:
		r.handleRequestData(ctx, connID, clientMsg.Payload)
	default:
		r.logger.Warn("Received unknown event", "event", clientMsg.Event, "connID", connID)
	}
}

// handleRequestData replaces the connection's filter and pushes the matching
// last-known positions once. The snapshot read is not coordinated with the
// live broadcast path: a viewer may see a live update immediately followed by
// a slightly stale snapshot, which is accepted as eventually-consistent
// initial state.
func (r *EventRouter) handleRequestData(ctx context.Context, connID uuid.UUID, payload json.RawMessage) {
	f, err := r.parseFilter(payload)
	if err != nil {
		r.logger.Warn("Rejected malformed filter payload", "connID", connID, "error", err)
		return
	}
	r.registry.SetFilter(connID, f)
	r.logger.Debug("Filter request received", "connID", connID, slog.Any("pseudoIPs", f.PseudoIPs()))

	records, err := r.source.FilteredPositions(ctx, f)
	if err != nil {
		// Store trouble is invisible to the viewer: no snapshot, no error.
		r.logger.Error("Failed to load position snapshot", "connID", connID, "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	msg, err := json.Marshal(ServerMessage{Event: EventInitialPositions, Payload: r.encodeBatch(records)})
	if err != nil {
		r.logger.Error("Failed to marshal initial positions", "connID", connID, "error", err)
		return
	}

	sess, ok := r.registry.Get(connID)
	if !ok {
		// Disconnected while the snapshot was loading.
		return
	}
	sess.Transport.Send(msg)
	r.logger.Debug("Initial positions sent", "connID", connID, slog.Int("count", len(records)))
}

func (r *EventRouter) parseFilter(payload json.RawMessage) (*filter.Filter, error) {
	var fp FilterPayload
	if err := json.Unmarshal(payload, &fp); err != nil {
		return nil, err
	}

	if r.policy == filter.PolicyTimeRange {
		var from, to time.Time
		var err error
		if fp.From != "" {
			if from, err = time.Parse(time.RFC3339, fp.From); err != nil {
				return nil, err
			}
		}
		if fp.To != "" {
			if to, err = time.Parse(time.RFC3339, fp.To); err != nil {
				return nil, err
			}
		}
		return filter.NewTimeRange(from, to), nil
	}
	return filter.New(fp.PseudoIPs), nil
}

func (r *EventRouter) encodeBatch(records []position.Record) any {
	if r.geoJSON {
		return geojson.WrapAll(records)
	}
	return records
}
