// Package httpapi exposes the notes service over a JSON HTTP API built on gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartnotes/internal/ai"
	"smartnotes/internal/ailog"
	"smartnotes/internal/notes"
	"smartnotes/internal/quota"
)

// NotesService is the note use-case surface used by the handlers.
type NotesService interface {
	Create(ctx context.Context, userID string, in notes.CreateInput) (*notes.Note, error)
	Get(ctx context.Context, userID, id string) (*notes.Note, error)
	List(ctx context.Context, q notes.ListQuery) (notes.Page, error)
	Update(ctx context.Context, userID, id string, in notes.UpdateInput) (*notes.Note, error)
	Delete(ctx context.Context, userID, id string) error
	UpdateSummary(ctx context.Context, userID, id, summary string) (*notes.Note, error)
	UpdateTags(ctx context.Context, userID, id string, tags []string) (*notes.Note, error)
	History(ctx context.Context, userID, id string, limit int) ([]notes.Edit, error)
	Regenerate(ctx context.Context, userID, id string, target ai.Target) (*notes.RegenerateResult, error)
	AIStatus(ctx context.Context, userID, id string) (notes.AIStatus, error)
	Quota(ctx context.Context, userID string) quota.Count
}

// ErrorLogService is the AI error-log surface used by the handlers.
type ErrorLogService interface {
	List(ctx context.Context, userID string, limit, offset int) ([]ailog.Entry, error)
	Resolve(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string, days int) (ailog.Stats, error)
	Patterns(ctx context.Context, userID string, days int) (ailog.Patterns, error)
}

// Config wires the router.
type Config struct {
	Notes    NotesService
	ErrorLog ErrorLogService
	ACL      *ACL
	Limiter  *RateLimiter // optional
	// Health reports readiness of the backing stores; nil means always ready.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

type handler struct {
	notes  NotesService
	errlog ErrorLogService
	log    *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))
	acl := cfg.ACL
	if acl == nil {
		acl = NewACL("", nil)
	}
	h := &handler{notes: cfg.Notes, errlog: cfg.ErrorLog, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), Observe(log))

	r.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1", acl.Middleware())
	if cfg.Limiter != nil {
		api.Use(cfg.Limiter.Middleware())
	}

	api.POST("/notes", h.createNote)
	api.GET("/notes", h.listNotes)
	api.GET("/notes/:id", h.getNote)
	api.PATCH("/notes/:id", h.updateNote)
	api.DELETE("/notes/:id", h.deleteNote)
	api.PUT("/notes/:id/summary", h.updateSummary)
	api.PUT("/notes/:id/tags", h.updateTags)
	api.GET("/notes/:id/history", h.history)
	api.POST("/notes/:id/regenerate", h.regenerate)
	api.GET("/notes/:id/ai/status", h.aiStatus)
	api.GET("/regenerations/quota", h.quota)

	if cfg.ErrorLog != nil {
		api.GET("/ai/errors", h.listErrors)
		api.GET("/ai/errors/stats", h.errorStats)
		api.GET("/ai/errors/patterns", h.errorPatterns)
		api.POST("/ai/errors/:id/resolve", h.resolveError)
	}
	return r
}
