package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"smartnotes/internal/platform/metrics"
)

// DefaultRetention is how long regeneration history and resolved AI error
// logs are kept.
const DefaultRetention = 30 * 24 * time.Hour

// RegenerationPruner deletes regeneration rows recorded before a time.
type RegenerationPruner interface {
	PruneRegenerations(ctx context.Context, before time.Time) (int64, error)
}

// ErrorLogPruner deletes resolved AI error logs older than retention.
type ErrorLogPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Housekeeper removes expired regeneration history and resolved error logs.
type Housekeeper struct {
	regens    RegenerationPruner
	errs      ErrorLogPruner
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewHousekeeper creates a Housekeeper. A retention <= 0 uses
// DefaultRetention.
func NewHousekeeper(regens RegenerationPruner, errs ErrorLogPruner, retention time.Duration, log *slog.Logger) *Housekeeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = slog.Default()
	}
	return &Housekeeper{
		regens:    regens,
		errs:      errs,
		retention: retention,
		now:       time.Now,
		log:       log.With(slog.String("component", "housekeeping")),
	}
}

// Run prunes both tables. A failure of one does not skip the other.
func (h *Housekeeper) Run(ctx context.Context) error {
	var errs []error

	n, err := h.regens.PruneRegenerations(ctx, h.now().Add(-h.retention).UTC())
	if err != nil {
		errs = append(errs, err)
	} else {
		metrics.PrunedRowsTotal.WithLabelValues("regenerations").Add(float64(n))
	}
	m, err := h.errs.Prune(ctx, h.retention)
	if err != nil {
		errs = append(errs, err)
	} else {
		metrics.PrunedRowsTotal.WithLabelValues("ai_error_logs").Add(float64(m))
	}

	h.log.Info("housekeeping done",
		slog.Int64("regenerations", n),
		slog.Int64("error_logs", m),
		slog.Duration("retention", h.retention),
	)
	return errors.Join(errs...)
}

// Schedule registers h on s under the name "prune".
func (h *Housekeeper) Schedule(s *Scheduler, spec string) (JobID, error) {
	return s.AddCronJobWithOptions(spec, h.Run, JobOptions{
		Name:          "prune",
		Timeout:       5 * time.Minute,
		OverlapPolicy: SkipIfRunning,
	})
}
