// Package quota enforces the per-user daily limit on AI regenerations.
// A day starts at local midnight in the configured time zone.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"smartnotes/internal/platform/metrics"
	"smartnotes/internal/shared"
)

// DefaultDailyLimit is the number of regenerations a user may run per day.
const DefaultDailyLimit = 10

// Count is a user's regeneration usage for the current day.
type Count struct {
	CurrentCount  int  `json:"currentCount"`
	Limit         int  `json:"limit"`
	CanRegenerate bool `json:"canRegenerate"`
}

// Reservation is one recorded regeneration.
type Reservation struct {
	ID     string
	UserID string
	NoteID string
	Target string
	At     time.Time
}

// Store persists regenerations. Reserve must check the count and record r
// atomically: it returns the count after the call and whether r was recorded.
type Store interface {
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Reserve(ctx context.Context, r Reservation, since time.Time, limit int) (int, bool, error)
}

// Limiter answers quota questions and reserves regenerations.
type Limiter struct {
	store Store
	limit int
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

// Option configures Limiter.
type Option func(*Limiter)

// WithLimit overrides DefaultDailyLimit.
func WithLimit(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.limit = n
		}
	}
}

// WithLocation sets the time zone whose midnight resets the count.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets logger used by limiter.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates a Limiter on top of store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		limit: DefaultDailyLimit,
		loc:   time.Local,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.With(slog.String("component", "quota"))
	return l
}

// Limit returns the daily limit.
func (l *Limiter) Limit() int { return l.limit }

// StartOfDay returns local midnight of the day containing t.
func (l *Limiter) StartOfDay(t time.Time) time.Time {
	return StartOfDay(t, l.loc)
}

// StartOfDay returns midnight in loc of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Status returns today's usage. A failed read denies regeneration.
func (l *Limiter) Status(ctx context.Context, userID string) Count {
	n, err := l.store.CountSince(ctx, userID, l.StartOfDay(l.now()))
	if err != nil {
		l.log.Error("failed to read regeneration count", slog.String("user_id", userID), slog.Any("error", err))
		return Count{CurrentCount: 0, Limit: l.limit, CanRegenerate: false}
	}
	return l.count(n)
}

// CanRegenerate reports whether userID has quota left today.
func (l *Limiter) CanRegenerate(ctx context.Context, userID string) bool {
	return l.Status(ctx, userID).CanRegenerate
}

// Reserve records one regeneration for userID if the quota allows it. The
// reservation counts whether or not the generation that follows succeeds.
func (l *Limiter) Reserve(ctx context.Context, userID, noteID, target string) (Count, error) {
	now := l.now()
	r := Reservation{
		ID:     uuid.NewString(),
		UserID: userID,
		NoteID: noteID,
		Target: target,
		At:     now,
	}
	n, ok, err := l.store.Reserve(ctx, r, l.StartOfDay(now), l.limit)
	if err != nil {
		metrics.RegenerationsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Count{Limit: l.limit}, err
		}
		return Count{Limit: l.limit}, shared.MarkKind(fmt.Errorf("reserve regeneration: %w", err), shared.KindUnavailable)
	}
	if !ok {
		metrics.RegenerationsTotal.WithLabelValues("denied").Inc()
		l.log.Info("regeneration limit reached", slog.String("user_id", userID), slog.Int("count", n))
		return l.count(n), shared.Problemf(shared.KindLimitExceeded, "일일 재생성 횟수 제한에 도달했습니다 (%d/%d)", n, l.limit)
	}
	metrics.RegenerationsTotal.WithLabelValues("allowed").Inc()
	return l.count(n), nil
}

func (l *Limiter) count(n int) Count {
	return Count{CurrentCount: n, Limit: l.limit, CanRegenerate: n < l.limit}
}
