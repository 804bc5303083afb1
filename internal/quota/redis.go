package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryWriter records a regeneration that passed the quota check.
type HistoryWriter interface {
	InsertRegeneration(ctx context.Context, r Reservation) error
}

// RedisStore counts regenerations in one Redis key per user and day. The
// key expires at the next local midnight. When history is set every accepted
// reservation is also written there.
type RedisStore struct {
	rdb     *redis.Client
	loc     *time.Location
	prefix  string
	history HistoryWriter
}

// NewRedisStore creates a RedisStore. history may be nil.
func NewRedisStore(rdb *redis.Client, loc *time.Location, history HistoryWriter) *RedisStore {
	if loc == nil {
		loc = time.Local
	}
	return &RedisStore{rdb: rdb, loc: loc, prefix: "smartnotes:regen", history: history}
}

func (s *RedisStore) key(userID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, userID, day.In(s.loc).Format("2006-01-02"))
}

// CountSince returns the counter of the day that starts at since.
func (s *RedisStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	n, err := s.rdb.Get(ctx, s.key(userID, since)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Reserve increments the day counter and rolls the increment back when it
// went over limit.
func (s *RedisStore) Reserve(ctx context.Context, r Reservation, since time.Time, limit int) (int, bool, error) {
	key := s.key(r.UserID, since)
	midnight := StartOfDay(since, s.loc).AddDate(0, 0, 1)

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireAt(ctx, key, midnight)
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("incr %s: %w", key, err)
	}

	n := int(incr.Val())
	if n > limit {
		if err := s.rdb.Decr(ctx, key).Err(); err != nil {
			return limit, false, fmt.Errorf("decr %s: %w", key, err)
		}
		return n - 1, false, nil
	}

	if s.history != nil {
		if err := s.history.InsertRegeneration(ctx, r); err != nil {
			_ = s.rdb.Decr(context.WithoutCancel(ctx), key).Err()
			return n - 1, false, fmt.Errorf("record regeneration: %w", err)
		}
	}
	return n, true, nil
}
