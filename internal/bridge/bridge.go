// Package bridge consumes the upstream position channel and fans each valid
// update out to the connected viewers whose filters match it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ricardomussett/ms-server-gps-socket/internal/router"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/geojson"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/state"
)

// Bridge owns the dedicated subscriber connection. Keeping it separate from
// the command client means a blocked subscribe never starves store lookups.
type Bridge struct {
	sub      *redis.Client
	registry state.Registry
	matcher  *filter.Matcher
	channel  string
	geoJSON  bool

	logger *slog.Logger
}

func New(sub *redis.Client, reg state.Registry, matcher *filter.Matcher, channel string, geoJSON bool, logger *slog.Logger) *Bridge {
	return &Bridge{
		sub:      sub,
		registry: reg,
		matcher:  matcher,
		channel:  channel,
		geoJSON:  geoJSON,
		logger:   logger.With(slog.String("component", "pubsub_bridge")),
	}
}

const (
	subscribeBackoffMin = 250 * time.Millisecond
	subscribeBackoffMax = 15 * time.Second
)

// Run subscribes and consumes until the context is cancelled. A failed or
// dropped subscription is retried with exponential backoff: Redis being down
// at startup, or going away later, must never leave the fan-out path dead
// while the server keeps admitting viewers. Messages published while the
// link is down are lost, which is fine for a latest-position feed.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := subscribeBackoffMin
	for {
		subscribed, err := b.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			backoff = subscribeBackoffMin
		}
		if err != nil {
			b.logger.Warn("Upstream subscription lost, retrying",
				slog.Any("error", err),
				slog.Duration("backoff", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > subscribeBackoffMax {
			backoff = subscribeBackoffMax
		}
	}
}

// consume establishes one subscription and drains it until the context is
// cancelled or the subscription dies. The returned flag reports whether the
// subscribe handshake succeeded, so Run can reset its backoff.
func (b *Bridge) consume(ctx context.Context) (bool, error) {
	pubsub := b.sub.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, err
	}
	b.logger.Info("Subscribed to upstream channel", slog.String("channel", b.channel))

	// The go-redis PubSub reconnects on its own while the channel stays
	// open; a closed channel means the subscription is beyond recovery.
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("subscription channel closed")
			}
			b.Dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Dispatch handles one raw upstream message: decode, gate on channel and
// type, then deliver to every matching session. It never panics and never
// returns an error; a bad message is logged and dropped so the stream keeps
// flowing.
func (b *Bridge) Dispatch(channel string, raw []byte) {
	if channel != b.channel {
		return
	}

	env, err := position.DecodeEnvelope(raw)
	if err != nil {
		b.logger.Warn("Dropped malformed upstream message", slog.Any("error", err))
		return
	}
	if env.Type != position.TypePosition {
		// Forward-compatible: other message kinds pass by silently.
		return
	}

	rec := env.Record()
	msg, err := json.Marshal(router.ServerMessage{Event: router.EventPositions, Payload: b.encode(rec)})
	if err != nil {
		b.logger.Error("Failed to marshal position update", slog.Any("error", err))
		return
	}

	delivered := 0
	for _, sess := range b.registry.Snapshot() {
		if !b.matcher.Matches(rec, sess.Filter) {
			continue
		}
		// Send is a non-blocking enqueue per recipient: a full or closed
		// peer drops its copy without affecting the rest of the pass.
		sess.Transport.Send(msg)
		delivered++
	}
	b.logger.Debug("Position update dispatched",
		slog.String("device", rec.DeviceID()),
		slog.Int("delivered", delivered),
	)
}

func (b *Bridge) encode(rec position.Record) any {
	if b.geoJSON {
		return geojson.Wrap(rec)
	}
	return rec
}
