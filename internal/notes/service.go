package notes

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartnotes/internal/ai"
	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ai/retry"
	"smartnotes/internal/quota"
	"smartnotes/internal/shared"
)

// Generator produces AI summaries and tags.
type Generator interface {
	Generate(ctx context.Context, content string, target ai.Target, st ai.States) ai.Outcome
	Model() string
}

// Quota reserves regenerations.
type Quota interface {
	Reserve(ctx context.Context, userID, noteID, target string) (quota.Count, error)
	Status(ctx context.Context, userID string) quota.Count
}

// ErrorRecorder persists final AI failures.
type ErrorRecorder interface {
	Record(ctx context.Context, e *aierr.Error, userID, noteID, op string, retryCount int) (string, error)
}

// Scheduler runs jobs in the background. Jobs submitted with the same key
// run one at a time in submission order.
type Scheduler interface {
	Submit(key string, job func(ctx context.Context)) bool
}

// AI status values reported by AIStatus.
const (
	StatusIdle      = "IDLE"
	StatusLoading   = "LOADING"
	StatusCompleted = "COMPLETED"
	StatusError     = "ERROR"
)

// AIStatus is the state of a note's latest AI run. The embedded snapshot
// merges both halves for display; Summary and Tags hold each half as tracked.
type AIStatus struct {
	Status string `json:"status"`
	retry.Snapshot
	Summary *retry.Snapshot `json:"summary,omitempty"`
	Tags    *retry.Snapshot `json:"tags,omitempty"`
}

// RegenerateResult is the outcome of a successful Regenerate call. One of
// the requested halves may still have failed; its error is set.
type RegenerateResult struct {
	Note       *Note        `json:"note"`
	Quota      quota.Count  `json:"quota"`
	SummaryErr *aierr.Error `json:"summaryError,omitempty"`
	TagsErr    *aierr.Error `json:"tagsError,omitempty"`
	Attempts   int          `json:"attempts"`
}

// Service implements the note use cases.
type Service struct {
	repo    Repository
	gen     Generator
	quota   Quota
	errlog  ErrorRecorder
	jobs    Scheduler
	board   *retry.Board
	running sync.Map
	now     func() time.Time
	log     *slog.Logger
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo      Repository
	Generator Generator
	Quota     Quota
	ErrorLog  ErrorRecorder
	Jobs      Scheduler
	Logger    *slog.Logger
}

// NewService creates a Service. Jobs may be nil, in which case generation
// after create and update is skipped.
func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   d.Repo,
		gen:    d.Generator,
		quota:  d.Quota,
		errlog: d.ErrorLog,
		jobs:   d.Jobs,
		board:  retry.NewBoard(),
		now:    time.Now,
		log:    log.With(slog.String("component", "notes")),
	}
}

// CreateInput is the payload of Create.
type CreateInput struct {
	Title   string
	Content string
}

// UpdateInput is the payload of Update. Nil fields are left unchanged.
type UpdateInput struct {
	Title   *string
	Content *string
}

// Create stores a new note and schedules its AI generation.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Note, error) {
	title, err := NormalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	n := &Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      []string{},
	}
	if err := s.repo.CreateNote(ctx, n); err != nil {
		return nil, shared.Wrap(err, "create note")
	}
	s.log.Info("note created", slog.String("note_id", n.ID), slog.String("user_id", userID))
	s.scheduleGeneration(userID, n)
	return n, nil
}

// Get returns one of the user's notes.
func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	n, err := s.repo.GetNote(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

// List returns a page of the user's notes. With a search term, notes whose
// title matches are ranked before notes that match only in content.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	q = NormalizeListQuery(q)
	items, total, err := s.repo.ListNotes(ctx, q)
	if err != nil {
		return Page{}, shared.Wrap(err, "list notes")
	}
	if items == nil {
		items = []Note{}
	}
	return Page{
		Notes:      items,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// Update changes title and/or content. A content change schedules a new
// AI generation.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Note, error) {
	n, err := s.repo.GetNote(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}

	contentChanged := false
	if in.Title != nil {
		if n.Title, err = NormalizeTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		c := strings.TrimSpace(*in.Content)
		if err := ValidateContent(c); err != nil {
			return nil, err
		}
		contentChanged = c != n.Content
		n.Content = c
	}
	n.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateNote(ctx, n); err != nil {
		return nil, notFound(err)
	}
	if contentChanged {
		s.scheduleGeneration(userID, n)
	}
	return n, nil
}

// Delete removes the note with its summary, tags and history.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteNote(ctx, userID, id); err != nil {
		return notFound(err)
	}
	s.board.Forget(summaryKey(id))
	s.board.Forget(tagsKey(id))
	s.log.Info("note deleted", slog.String("note_id", id), slog.String("user_id", userID))
	return nil
}

// UpdateSummary replaces the summary with a hand-written one.
func (s *Service) UpdateSummary(ctx context.Context, userID, id, summary string) (*Note, error) {
	summary, err := ValidateSummary(summary)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.GetNote(ctx, userID, id)
		if err != nil {
			return err
		}
		return s.saveSummary(ctx, n, summary, ManualModel, true)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, userID, id)
}

// UpdateTags replaces the tags with hand-written ones.
func (s *Service) UpdateTags(ctx context.Context, userID, id string, tags []string) (*Note, error) {
	tags, err := ValidateTags(tags)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.repo.GetNote(ctx, userID, id)
		if err != nil {
			return err
		}
		return s.saveTags(ctx, n, tags, true)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, userID, id)
}

// History returns the latest edits of a note.
func (s *Service) History(ctx context.Context, userID, id string, limit int) ([]Edit, error) {
	if _, err := s.repo.GetNote(ctx, userID, id); err != nil {
		return nil, notFound(err)
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = 20
	}
	edits, err := s.repo.ListEdits(ctx, id, limit)
	if err != nil {
		return nil, shared.Wrap(err, "list edits")
	}
	return edits, nil
}

// Regenerate reserves a regeneration and regenerates target synchronously.
// The reservation counts even when generation fails. When every requested
// half fails the *aierr.Error of the first failure is returned.
func (s *Service) Regenerate(ctx context.Context, userID, id string, target ai.Target) (*RegenerateResult, error) {
	n, err := s.repo.GetNote(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if strings.TrimSpace(n.Content) == "" {
		return nil, errNoContent
	}

	count, err := s.quota.Reserve(ctx, userID, id, string(target))
	if err != nil {
		return nil, err
	}

	out := s.generate(ctx, userID, n, target, false)
	res := &RegenerateResult{
		Quota:      count,
		SummaryErr: out.SummaryErr,
		TagsErr:    out.TagsErr,
		Attempts:   out.Attempts,
	}
	if failedAll(target, out) {
		return res, out.Err()
	}
	if res.Note, err = s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return res, nil
}

// GenerateFor runs summary and tag generation for a stored note. It is the
// body of background jobs and is a no-op for deleted or empty notes.
func (s *Service) GenerateFor(ctx context.Context, userID, id string) {
	n, err := s.repo.GetNote(ctx, userID, id)
	if err != nil {
		if !shared.IsNotFound(err) {
			s.log.Error("failed to load note for generation", slog.String("note_id", id), slog.Any("error", err))
		}
		return
	}
	if strings.TrimSpace(n.Content) == "" {
		return
	}
	s.generate(ctx, userID, n, ai.TargetBoth, true)
}

// AIStatus reports the state of the note's latest AI run.
func (s *Service) AIStatus(ctx context.Context, userID, id string) (AIStatus, error) {
	if _, err := s.repo.GetNote(ctx, userID, id); err != nil {
		return AIStatus{}, notFound(err)
	}
	res := AIStatus{
		Summary: s.snapshot(summaryKey(id)),
		Tags:    s.snapshot(tagsKey(id)),
	}
	if res.Summary == nil && res.Tags == nil {
		return AIStatus{Status: StatusIdle}, nil
	}
	res.Snapshot = mergeSnapshots(res.Summary, res.Tags)
	res.Status = StatusCompleted
	switch {
	case s.isRunning(id):
		res.Status = StatusLoading
	case res.LastError != nil:
		res.Status = StatusError
	}
	return res, nil
}

func (s *Service) snapshot(key string) *retry.Snapshot {
	st, ok := s.board.Get(key)
	if !ok {
		return nil
	}
	snap := st.Snapshot()
	return &snap
}

// mergeSnapshots folds the two halves into one view: the busier half's
// attempts and progress, retrying if either is, and the summary error first.
func mergeSnapshots(sum, tag *retry.Snapshot) retry.Snapshot {
	var out retry.Snapshot
	for _, snap := range []*retry.Snapshot{sum, tag} {
		if snap == nil {
			continue
		}
		out.Attempts = max(out.Attempts, snap.Attempts)
		out.Progress = max(out.Progress, snap.Progress)
		out.IsRetrying = out.IsRetrying || snap.IsRetrying
		if out.LastError == nil {
			out.LastError = snap.LastError
		}
	}
	return out
}

func summaryKey(id string) string { return id + ":summary" }
func tagsKey(id string) string    { return id + ":tags" }

// Quota returns the user's regeneration usage for today.
func (s *Service) Quota(ctx context.Context, userID string) quota.Count {
	return s.quota.Status(ctx, userID)
}

func (s *Service) scheduleGeneration(userID string, n *Note) {
	if s.jobs == nil || n.Content == "" {
		return
	}
	noteID := n.ID
	if !s.jobs.Submit(noteID, func(ctx context.Context) { s.GenerateFor(ctx, userID, noteID) }) {
		s.log.Warn("ai generation not scheduled", slog.String("note_id", noteID))
	}
}

// generate runs the AI for n, stores what succeeded and records failures.
func (s *Service) generate(ctx context.Context, userID string, n *Note, target ai.Target, background bool) ai.Outcome {
	var st ai.States
	if target != ai.TargetTags {
		st.Summary = s.board.Begin(summaryKey(n.ID))
	}
	if target != ai.TargetSummary {
		st.Tags = s.board.Begin(tagsKey(n.ID))
	}
	s.running.Store(n.ID, struct{}{})
	defer s.running.Delete(n.ID)

	out := s.gen.Generate(ctx, n.Content, target, st)

	if s.errlog != nil {
		if out.SummaryErr != nil {
			_, _ = s.errlog.Record(ctx, out.SummaryErr, userID, n.ID, "summary", st.Summary.Snapshot().Attempts)
		}
		if out.TagsErr != nil {
			_, _ = s.errlog.Record(ctx, out.TagsErr, userID, n.ID, "tags", st.Tags.Snapshot().Attempts)
		}
	}
	if failedAll(target, out) {
		return out
	}

	// Storing must not be cut short by a caller that stopped waiting.
	storeCtx := context.WithoutCancel(ctx)
	err := s.repo.WithinTx(storeCtx, func(ctx context.Context) error {
		if target != ai.TargetTags && out.SummaryErr == nil {
			if err := s.saveSummary(ctx, n, out.Summary, s.gen.Model(), false); err != nil {
				return err
			}
		}
		if target != ai.TargetSummary && out.TagsErr == nil {
			if err := s.saveTags(ctx, n, out.Tags, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to store ai results", slog.String("note_id", n.ID), slog.Any("error", err))
		if out.SummaryErr == nil && target != ai.TargetTags {
			out.SummaryErr = aierr.Classify(err)
		}
		return out
	}
	s.log.Info("ai generation stored",
		slog.String("note_id", n.ID),
		slog.String("target", string(target)),
		slog.Bool("background", background),
		slog.Int("attempts", out.Attempts),
	)
	return out
}

func (s *Service) saveSummary(ctx context.Context, n *Note, content, model string, manual bool) error {
	var before string
	if n.Summary != nil {
		before = n.Summary.Content
	}
	now := s.now().UTC()
	if err := s.repo.SaveSummary(ctx, n.ID, Summary{Model: model, Content: content, CreatedAt: now}); err != nil {
		return err
	}
	return s.repo.AddEdit(ctx, Edit{
		ID:       uuid.NewString(),
		NoteID:   n.ID,
		Kind:     EditSummary,
		Manual:   manual,
		Original: before,
		Edited:   content,
		EditedBy: n.UserID,
		EditedAt: now,
	})
}

func (s *Service) saveTags(ctx context.Context, n *Note, tags []string, manual bool) error {
	if err := s.repo.SaveTags(ctx, n.ID, tags); err != nil {
		return err
	}
	return s.repo.AddEdit(ctx, Edit{
		ID:       uuid.NewString(),
		NoteID:   n.ID,
		Kind:     EditTags,
		Manual:   manual,
		Original: strings.Join(n.Tags, ", "),
		Edited:   strings.Join(tags, ", "),
		EditedBy: n.UserID,
		EditedAt: s.now().UTC(),
	})
}

func (s *Service) isRunning(id string) bool {
	_, ok := s.running.Load(id)
	return ok
}

func failedAll(target ai.Target, out ai.Outcome) bool {
	switch target {
	case ai.TargetSummary:
		return out.SummaryErr != nil
	case ai.TargetTags:
		return out.TagsErr != nil
	default:
		return out.SummaryErr != nil && out.TagsErr != nil
	}
}

func notFound(err error) error {
	if shared.IsNotFound(err) {
		return errNoteNotFound
	}
	return err
}
