package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartnotes/internal/ai"
	"smartnotes/internal/ai/retry"
	"smartnotes/internal/notes"
	"smartnotes/internal/quota"
)

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type updateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type listNotesQuery struct {
	Search string `form:"search"`
	Sort   string `form:"sort" binding:"omitempty,oneof=newest oldest title"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type regenerateRequest struct {
	Type string `json:"type" binding:"required,oneof=summary tags both"`
}

type regenerateResponse struct {
	Note       *notes.Note  `json:"note,omitempty"`
	Quota      quota.Count  `json:"quota"`
	Attempts   int          `json:"attempts"`
	SummaryErr *aiErrorBody `json:"summaryError,omitempty"`
	TagsErr    *aiErrorBody `json:"tagsError,omitempty"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (h *handler) createNote(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	n, err := h.notes.Create(c.Request.Context(), UserID(c), notes.CreateInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *handler) listNotes(c *gin.Context) {
	var q listNotesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c)
		return
	}
	page, err := h.notes.List(c.Request.Context(), notes.ListQuery{
		UserID: UserID(c),
		Search: q.Search,
		Sort:   notes.Sort(q.Sort),
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handler) getNote(c *gin.Context) {
	n, err := h.notes.Get(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handler) updateNote(c *gin.Context) {
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	n, err := h.notes.Update(c.Request.Context(), UserID(c), c.Param("id"), notes.UpdateInput{Title: req.Title, Content: req.Content})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handler) deleteNote(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), UserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) updateSummary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	n, err := h.notes.UpdateSummary(c.Request.Context(), UserID(c), c.Param("id"), req.Summary)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handler) updateTags(c *gin.Context) {
	var req tagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	n, err := h.notes.UpdateTags(c.Request.Context(), UserID(c), c.Param("id"), req.Tags)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handler) history(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c)
		return
	}
	edits, err := h.notes.History(c.Request.Context(), UserID(c), c.Param("id"), q.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": edits})
}

func (h *handler) regenerate(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	target, err := ai.ParseTarget(req.Type)
	if err != nil {
		badRequest(c)
		return
	}
	res, err := h.notes.Regenerate(c.Request.Context(), UserID(c), c.Param("id"), target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, regenerateResponse{
		Note:       res.Note,
		Quota:      res.Quota,
		Attempts:   res.Attempts,
		SummaryErr: newAIErrorBody(res.SummaryErr),
		TagsErr:    newAIErrorBody(res.TagsErr),
	})
}

type aiStatusResponse struct {
	Status     string       `json:"status"`
	Attempts   int          `json:"attempts"`
	IsRetrying bool         `json:"isRetrying"`
	Progress   float64      `json:"progress"`
	LastError  *aiErrorBody `json:"lastError,omitempty"`
	Summary    *aiHalfBody  `json:"summary,omitempty"`
	Tags       *aiHalfBody  `json:"tags,omitempty"`
}

type aiHalfBody struct {
	Attempts   int          `json:"attempts"`
	IsRetrying bool         `json:"isRetrying"`
	Progress   float64      `json:"progress"`
	LastError  *aiErrorBody `json:"lastError,omitempty"`
}

func newAIHalfBody(snap *retry.Snapshot) *aiHalfBody {
	if snap == nil {
		return nil
	}
	return &aiHalfBody{
		Attempts:   snap.Attempts,
		IsRetrying: snap.IsRetrying,
		Progress:   snap.Progress,
		LastError:  newAIErrorBody(snap.LastError),
	}
}

func (h *handler) aiStatus(c *gin.Context) {
	st, err := h.notes.AIStatus(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, aiStatusResponse{
		Status:     st.Status,
		Attempts:   st.Attempts,
		IsRetrying: st.IsRetrying,
		Progress:   st.Progress,
		LastError:  newAIErrorBody(st.LastError),
		Summary:    newAIHalfBody(st.Summary),
		Tags:       newAIHalfBody(st.Tags),
	})
}

func (h *handler) quota(c *gin.Context) {
	c.JSON(http.StatusOK, h.notes.Quota(c.Request.Context(), UserID(c)))
}
