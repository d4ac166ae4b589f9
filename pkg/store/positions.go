package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/filter"
	"github.com/ricardomussett/ms-server-gps-socket/pkg/position"
)

// PositionStore reads last-known positions out of the Redis hash store. It
// holds the command client; the pub/sub bridge owns a separate subscriber
// connection so a blocked subscribe can never starve these lookups.
type PositionStore struct {
	rdb     *redis.Client
	prefix  string
	matcher *filter.Matcher
	timeout time.Duration

	logger *slog.Logger
}

func New(rdb *redis.Client, prefix string, matcher *filter.Matcher, timeout time.Duration, logger *slog.Logger) *PositionStore {
	return &PositionStore{
		rdb:     rdb,
		prefix:  prefix,
		matcher: matcher,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "position_store")),
	}
}

// FilteredPositions scans every `<prefix>:*` hash and returns the records
// matching the filter. Keys shaped like `<prefix>:undefined` are upstream
// write bugs and are excluded. The whole scan is bounded by the configured
// timeout.
func (s *PositionStore) FilteredPositions(ctx context.Context, f *filter.Filter) ([]position.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	invalidKey := fmt.Sprintf("%s:undefined", s.prefix)

	var records []position.Record
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == invalidKey {
			continue
		}

		data, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if len(data) == 0 {
			continue
		}
		rec := position.Record(data)
		if s.matcher.Matches(rec, f) {
			records = append(records, rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning position keys: %w", err)
	}

	s.logger.Debug("Position scan complete", slog.Int("matched", len(records)))
	return records, nil
}
