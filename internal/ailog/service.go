package ailog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"smartnotes/internal/ai/aierr"
)

// DefaultStatsDays is the window of Stats when none is given.
const DefaultStatsDays = 30

// Store persists error log entries.
type Store interface {
	InsertErrorLog(ctx context.Context, e Entry) error
	ListErrorLogs(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
	ErrorLogsSince(ctx context.Context, userID string, since time.Time) ([]Entry, error)
	// ResolveErrorLog marks the entry resolved; shared.ErrNotFound when the
	// user has no such entry.
	ResolveErrorLog(ctx context.Context, userID, id string, at time.Time) error
	PruneErrorLogs(ctx context.Context, resolvedBefore time.Time) (int64, error)
}

// Service records AI failures and answers queries about them.
type Service struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, now: time.Now, log: log.With(slog.String("component", "ailog"))}
}

// Record persists e for userID. A failed insert is logged and reported but
// never masks the AI failure itself, so callers usually ignore the error.
func (s *Service) Record(ctx context.Context, e *aierr.Error, userID, noteID, op string, retryCount int) (string, error) {
	entry := Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		NoteID:     noteID,
		Type:       e.Type,
		Severity:   e.Severity,
		Message:    aierr.Normalize(e.Message),
		Context:    op,
		RetryCount: retryCount,
		CreatedAt:  s.now().UTC(),
	}

	if a := AlertFor(e); a.ShouldAlert {
		s.log.Error(a.Message,
			slog.String("priority", a.Priority),
			slog.String("type", string(e.Type)),
			slog.String("user_id", userID),
			slog.String("note_id", noteID),
		)
	}

	if err := s.store.InsertErrorLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("failed to store ai error log", slog.Any("error", err))
		return "", fmt.Errorf("insert error log: %w", err)
	}
	return entry.ID, nil
}

// List returns the user's entries, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListErrorLogs(ctx, userID, limit, offset)
}

// Resolve marks an entry resolved now.
func (s *Service) Resolve(ctx context.Context, userID, id string) error {
	return s.store.ResolveErrorLog(ctx, userID, id, s.now().UTC())
}

// Stats aggregates the user's failures of the last days days.
func (s *Service) Stats(ctx context.Context, userID string, days int) (Stats, error) {
	entries, err := s.window(ctx, userID, days)
	if err != nil {
		return ComputeStats(nil, s.now()), err
	}
	return ComputeStats(entries, s.now()), nil
}

// Patterns analyses the user's failures of the last days days.
func (s *Service) Patterns(ctx context.Context, userID string, days int) (Patterns, error) {
	entries, err := s.window(ctx, userID, days)
	if err != nil {
		return ComputePatterns(nil), err
	}
	return ComputePatterns(entries), nil
}

// Prune deletes resolved entries older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PruneErrorLogs(ctx, s.now().Add(-retention).UTC())
}

func (s *Service) window(ctx context.Context, userID string, days int) ([]Entry, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	return s.store.ErrorLogsSince(ctx, userID, s.now().AddDate(0, 0, -days).UTC())
}
