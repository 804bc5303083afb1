package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ai/retry"
	"smartnotes/internal/platform/metrics"
)

// Target selects what a generation run produces.
type Target string

const (
	TargetSummary Target = "summary"
	TargetTags    Target = "tags"
	TargetBoth    Target = "both"
)

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetSummary, TargetTags, TargetBoth:
		return t, nil
	default:
		return "", fmt.Errorf("unknown generation target %q", s)
	}
}

func (t Target) wantsSummary() bool { return t == TargetSummary || t == TargetBoth }
func (t Target) wantsTags() bool    { return t == TargetTags || t == TargetBoth }

// Outcome is the result of a generation run. A failed half leaves its value
// empty and sets the matching error.
type Outcome struct {
	Summary    string
	Tags       []string
	SummaryErr *aierr.Error
	TagsErr    *aierr.Error
	Attempts   int
}

// Err returns the first failure of the run, summary first.
func (o Outcome) Err() *aierr.Error {
	if o.SummaryErr != nil {
		return o.SummaryErr
	}
	return o.TagsErr
}

// States holds the retry state of each half of a run. Either may be nil.
type States struct {
	Summary *retry.State
	Tags    *retry.State
}

// Generator runs summary and tag prompts through a Completer under retry.
type Generator struct {
	completer Completer
	provider  string
	model     string
	cfg       retry.Config
	log       *slog.Logger
}

// Option configures Generator.
type Option func(*Generator)

// WithRetryConfig overrides the retry configuration.
func WithRetryConfig(cfg retry.Config) Option {
	return func(g *Generator) { g.cfg = cfg }
}

// WithLogger sets logger used by generator.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGenerator creates a Generator on top of c.
func NewGenerator(c Completer, opts ...Option) *Generator {
	g := &Generator{
		completer: c,
		provider:  "gemini",
		model:     DefaultModel,
		cfg:       retry.DefaultConfig(),
		log:       slog.Default(),
	}
	if d, ok := c.(Describer); ok {
		g.provider, g.model = d.Provider(), d.Model()
	}
	for _, o := range opts {
		o(g)
	}
	g.log = g.log.With(slog.String("component", "ai"), slog.String("provider", g.provider))
	return g
}

// Model is the model name stored with generated summaries.
func (g *Generator) Model() string { return g.model }

// Summarize produces a bullet-point summary of content.
func (g *Generator) Summarize(ctx context.Context, content string, st *retry.State) retry.Result[string] {
	return runOp(ctx, g, "summary", st, func(ctx context.Context) (string, error) {
		out, err := g.complete(ctx, "summary", SummaryPrompt(content))
		return strings.TrimSpace(out), err
	})
}

// GenerateTags produces up to MaxTags normalized tags for content.
func (g *Generator) GenerateTags(ctx context.Context, content string, st *retry.State) retry.Result[[]string] {
	return runOp(ctx, g, "tags", st, func(ctx context.Context) ([]string, error) {
		out, err := g.complete(ctx, "tags", TagPrompt(content))
		if err != nil {
			return nil, err
		}
		return ParseTags(out, MaxTags), nil
	})
}

// Generate runs the requested halves concurrently. One half failing does not
// discard the other. Each half reports into its own state.
func (g *Generator) Generate(ctx context.Context, content string, target Target, st States) Outcome {
	var (
		out Outcome
		sum retry.Result[string]
		tag retry.Result[[]string]
		eg  errgroup.Group
	)
	if target.wantsSummary() {
		eg.Go(func() error {
			sum = g.Summarize(ctx, content, st.Summary)
			return nil
		})
	}
	if target.wantsTags() {
		eg.Go(func() error {
			tag = g.GenerateTags(ctx, content, st.Tags)
			return nil
		})
	}
	_ = eg.Wait()

	if target.wantsSummary() {
		out.Summary, out.SummaryErr = sum.Data, sum.Err
		out.Attempts += sum.Attempts
	}
	if target.wantsTags() {
		out.Tags, out.TagsErr = tag.Data, tag.Err
		out.Attempts += tag.Attempts
	}
	finish(st.Summary, out.SummaryErr)
	finish(st.Tags, out.TagsErr)
	return out
}

// finish settles st on the half's final outcome. A half that recovered
// after retries ends with no error.
func finish(st *retry.State, err *aierr.Error) {
	if st == nil {
		return
	}
	st.StopRetry()
	st.SetError(err)
}

func (g *Generator) complete(ctx context.Context, op, prompt string) (string, error) {
	if err := CheckTokenBudget(prompt); err != nil {
		return "", err
	}
	out, err := g.completer.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyCompletion
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.AICallsTotal.WithLabelValues(g.provider, op, outcome).Inc()
	return out, err
}

func runOp[T any](ctx context.Context, g *Generator, op string, st *retry.State, fn retry.Operation[T]) retry.Result[T] {
	onRetry := func(attempt int, err *aierr.Error) {
		metrics.AIRetriesTotal.WithLabelValues(op, string(err.Type)).Inc()
		g.log.Warn("ai call failed, retrying",
			slog.String("op", op),
			slog.Int("retry", attempt),
			slog.String("type", string(err.Type)),
			slog.String("error", err.Message),
		)
		if st != nil {
			st.OnRetry(attempt, err)
		}
	}

	res := retry.Execute(ctx, g.cfg, fn, onRetry)
	metrics.AILatency.WithLabelValues(op).Observe(res.TotalTime.Seconds())
	if !res.Success {
		metrics.AIFailuresTotal.WithLabelValues(op, string(res.Err.Type), string(res.Err.Severity)).Inc()
		g.log.Error("ai call failed",
			slog.String("op", op),
			slog.Int("attempts", res.Attempts),
			slog.String("type", string(res.Err.Type)),
			slog.String("severity", string(res.Err.Severity)),
			slog.String("error", res.Err.Message),
		)
	}
	return res
}
