package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartnotes/internal/ailog"
)

type listErrorsQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type windowQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

func (h *handler) listErrors(c *gin.Context) {
	var q listErrorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c)
		return
	}
	entries, err := h.errlog.List(c.Request.Context(), UserID(c), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": entries})
}

func (h *handler) errorStats(c *gin.Context) {
	var q windowQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c)
		return
	}
	stats, err := h.errlog.Stats(c.Request.Context(), UserID(c), orDays(q.Days))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) errorPatterns(c *gin.Context) {
	var q windowQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c)
		return
	}
	p, err := h.errlog.Patterns(c.Request.Context(), UserID(c), orDays(q.Days))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) resolveError(c *gin.Context) {
	if err := h.errlog.Resolve(c.Request.Context(), UserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func orDays(d int) int {
	if d <= 0 {
		return ailog.DefaultStatsDays
	}
	return d
}
