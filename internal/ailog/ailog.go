// Package ailog persists final AI failures and derives statistics from them.
package ailog

import (
	"sort"
	"time"

	"smartnotes/internal/ai/aierr"
)

// Entry is one persisted AI failure. Message is always normalized.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"-"`
	NoteID     string         `json:"noteId,omitempty"`
	Type       aierr.Type     `json:"errorType"`
	Severity   aierr.Severity `json:"severity"`
	Message    string         `json:"errorMessage"`
	Context    string         `json:"context,omitempty"`
	RetryCount int            `json:"retryCount"`
	CreatedAt  time.Time      `json:"createdAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
}

// Stats summarizes the failures of a time window.
type Stats struct {
	Total                int            `json:"totalErrors"`
	ByType               map[string]int `json:"errorsByType"`
	BySeverity           map[string]int `json:"errorsBySeverity"`
	Recent               int            `json:"recentErrors"`
	Resolved             int            `json:"resolvedErrors"`
	AvgResolutionMinutes float64        `json:"averageResolutionTime"`
}

// TypeCount is a failure type with its number of occurrences.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// DayCount is the number of failures on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Patterns describes how failures are distributed over a window.
type Patterns struct {
	MostCommon []TypeCount `json:"mostCommonErrors"`
	Trend      []DayCount  `json:"errorTrends"`
	Critical   int         `json:"criticalErrors"`
}

// ComputeStats aggregates entries. Recent counts failures of the last 24h
// relative to now.
func ComputeStats(entries []Entry, now time.Time) Stats {
	s := Stats{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
	dayAgo := now.Add(-24 * time.Hour)
	var resolution time.Duration
	for _, e := range entries {
		s.Total++
		s.ByType[string(e.Type)]++
		s.BySeverity[string(e.Severity)]++
		if !e.CreatedAt.Before(dayAgo) {
			s.Recent++
		}
		if e.ResolvedAt != nil {
			s.Resolved++
			resolution += e.ResolvedAt.Sub(e.CreatedAt)
		}
	}
	if s.Resolved > 0 {
		s.AvgResolutionMinutes = resolution.Minutes() / float64(s.Resolved)
	}
	return s
}

// ComputePatterns returns the five most common types, a per-day trend in
// date order and the number of HIGH or CRITICAL failures.
func ComputePatterns(entries []Entry) Patterns {
	byType := make(map[string]int)
	byDay := make(map[string]int)
	p := Patterns{MostCommon: []TypeCount{}, Trend: []DayCount{}}
	for _, e := range entries {
		byType[string(e.Type)]++
		byDay[e.CreatedAt.UTC().Format(time.DateOnly)]++
		if e.Severity == aierr.SeverityCritical || e.Severity == aierr.SeverityHigh {
			p.Critical++
		}
	}
	for t, n := range byType {
		p.MostCommon = append(p.MostCommon, TypeCount{Type: t, Count: n})
	}
	sort.Slice(p.MostCommon, func(i, j int) bool {
		if p.MostCommon[i].Count != p.MostCommon[j].Count {
			return p.MostCommon[i].Count > p.MostCommon[j].Count
		}
		return p.MostCommon[i].Type < p.MostCommon[j].Type
	})
	if len(p.MostCommon) > 5 {
		p.MostCommon = p.MostCommon[:5]
	}
	for d, n := range byDay {
		p.Trend = append(p.Trend, DayCount{Date: d, Count: n})
	}
	sort.Slice(p.Trend, func(i, j int) bool { return p.Trend[i].Date < p.Trend[j].Date })
	return p
}

// Alert is the operator notification derived from a failure.
type Alert struct {
	ShouldAlert bool
	Message     string
	Priority    string
}

// AlertFor builds the alert for e. Only HIGH and CRITICAL failures alert.
func AlertFor(e *aierr.Error) Alert {
	switch e.Severity {
	case aierr.SeverityCritical:
		return Alert{true, "심각한 AI 에러가 발생했습니다: " + e.UserMessage, "critical"}
	case aierr.SeverityHigh:
		return Alert{true, "AI 서비스에 문제가 있습니다: " + e.UserMessage, "high"}
	case aierr.SeverityMedium:
		return Alert{false, "AI 처리 중 문제가 발생했습니다: " + e.UserMessage, "medium"}
	default:
		return Alert{false, "AI 처리 중 경고가 발생했습니다: " + e.UserMessage, "low"}
	}
}
