package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartnotes/internal/adapter/httpapi"
	"smartnotes/internal/ai"
	"smartnotes/internal/ai/retry"
	"smartnotes/internal/ailog"
	"smartnotes/internal/notes"
	"smartnotes/internal/platform/sqlite"
	"smartnotes/internal/quota"
	"smartnotes/internal/store/sqlitestore"
	"smartnotes/migrations"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func instantRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.After = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	return cfg
}

// okCompleter answers summary and tag prompts.
func okCompleter(_ context.Context, prompt string) (string, error) {
	if strings.HasSuffix(prompt, "요약:") {
		return "- 핵심 요약", nil
	}
	return "Go, 테스트", nil
}

type server struct {
	r        *gin.Engine
	complete ai.CompleterFunc
}

func newServer(t *testing.T, complete ai.CompleterFunc, opts ...func(*httpapi.Config)) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := sqlitestore.New(sqlite.NewTestDB(t, migrations.FS, migrations.SQLiteDir), quiet)
	gen := ai.NewGenerator(complete, ai.WithRetryConfig(instantRetry()), ai.WithLogger(quiet))
	errs := ailog.NewService(store, quiet)
	svc := notes.NewService(notes.Deps{
		Repo:      store,
		Generator: gen,
		Quota:     quota.New(store, quota.WithLimit(2), quota.WithLogger(quiet)),
		ErrorLog:  errs,
		Logger:    quiet,
	})
	cfg := httpapi.Config{
		Notes:    svc,
		ErrorLog: errs,
		ACL:      httpapi.NewACL("", []string{"u1", "u2"}),
		Health:   store.Ping,
		Logger:   quiet,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &server{r: httpapi.NewRouter(cfg), complete: complete}
}

func (s *server) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(httpapi.DefaultUserHeader, user)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type problem struct {
	Error struct {
		Code        string `json:"code"`
		Message     string `json:"message"`
		Type        string `json:"type"`
		Severity    string `json:"severity"`
		UserMessage string `json:"userMessage"`
		CanRetry    bool   `json:"canRetry"`
		Alternative string `json:"alternative"`
	} `json:"error"`
}

func (s *server) createNote(t *testing.T, user, title, content string) notes.Note {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/notes", user, map[string]string{"title": title, "content": content})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[notes.Note](t, w)
}

func TestAuth(t *testing.T) {
	s := newServer(t, okCompleter)

	w := s.do(t, http.MethodGet, "/api/v1/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "로그인이 필요합니다", decode[problem](t, w).Error.Message)

	w = s.do(t, http.MethodGet, "/api/v1/notes", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotesCRUD(t *testing.T) {
	s := newServer(t, okCompleter)
	n := s.createNote(t, "u1", "", "본문")
	assert.Equal(t, notes.DefaultTitle, n.Title)

	w := s.do(t, http.MethodGet, "/api/v1/notes/"+n.ID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/notes/"+n.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "노트를 찾을 수 없거나 권한이 없습니다", decode[problem](t, w).Error.Message)

	w = s.do(t, http.MethodPatch, "/api/v1/notes/"+n.ID, "u1", map[string]string{"title": "회의록"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "회의록", decode[notes.Note](t, w).Title)

	w = s.do(t, http.MethodPost, "/api/v1/notes", "u1", map[string]string{"title": strings.Repeat("가", 201)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "제목은 200자 이내로 입력해주세요", decode[problem](t, w).Error.Message)

	w = s.do(t, http.MethodDelete, "/api/v1/notes/"+n.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/v1/notes/"+n.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNotes(t *testing.T) {
	s := newServer(t, okCompleter)
	s.createNote(t, "u1", "장보기", "golang 책")
	s.createNote(t, "u1", "Golang 스터디", "")
	s.createNote(t, "u1", "일기", "")

	w := s.do(t, http.MethodGet, "/api/v1/notes?search=golang&limit=1", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[notes.Page](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Notes, 1)
	assert.Equal(t, "Golang 스터디", page.Notes[0].Title)

	w = s.do(t, http.MethodGet, "/api/v1/notes", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decode[notes.Page](t, w)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Notes, 3)

	w = s.do(t, http.MethodGet, "/api/v1/notes?sort=title&page=2&limit=2", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decode[notes.Page](t, w)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Notes, 1)
	assert.Equal(t, "장보기", page.Notes[0].Title)

	w = s.do(t, http.MethodGet, "/api/v1/notes?limit=500", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/notes?sort=random", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestManualEditsAndHistory(t *testing.T) {
	s := newServer(t, okCompleter)
	n := s.createNote(t, "u1", "t", "c")

	w := s.do(t, http.MethodPut, "/api/v1/notes/"+n.ID+"/summary", "u1", map[string]string{"summary": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "요약 내용을 입력해주세요", decode[problem](t, w).Error.Message)

	w = s.do(t, http.MethodPut, "/api/v1/notes/"+n.ID+"/summary", "u1", map[string]string{"summary": "직접 요약"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, notes.ManualModel, decode[notes.Note](t, w).Summary.Model)

	w = s.do(t, http.MethodPut, "/api/v1/notes/"+n.ID+"/tags", "u1", map[string][]string{"tags": {"A", "a", "b"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, decode[notes.Note](t, w).Tags)

	w = s.do(t, http.MethodGet, "/api/v1/notes/"+n.ID+"/history", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[struct {
		History []notes.Edit `json:"history"`
	}](t, w)
	require.Len(t, hist.History, 2)
	assert.Equal(t, notes.EditTags, hist.History[0].Kind)
	assert.True(t, hist.History[0].Manual)
}

func TestRegenerate(t *testing.T) {
	s := newServer(t, okCompleter)
	n := s.createNote(t, "u1", "t", "Go 동시성 정리")

	w := s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "title"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "both"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Note  notes.Note  `json:"note"`
		Quota quota.Count `json:"quota"`
	}](t, w)
	assert.Equal(t, "- 핵심 요약", res.Note.Summary.Content)
	assert.Equal(t, []string{"go", "테스트"}, res.Note.Tags)
	assert.Equal(t, quota.Count{CurrentCount: 1, Limit: 2, CanRegenerate: true}, res.Quota)

	w = s.do(t, http.MethodGet, "/api/v1/notes/"+n.ID+"/ai/status", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decode[map[string]any](t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "summary"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "tags"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "일일 재생성 횟수 제한에 도달했습니다 (2/2)", decode[problem](t, w).Error.Message)

	w = s.do(t, http.MethodGet, "/api/v1/regenerations/quota", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, quota.Count{CurrentCount: 2, Limit: 2}, decode[quota.Count](t, w))
}

func TestRegenerate_EmptyContent(t *testing.T) {
	s := newServer(t, okCompleter)
	n := s.createNote(t, "u1", "t", "")

	w := s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "both"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "AI 처리를 위한 노트 내용이 없습니다", decode[problem](t, w).Error.Message)
}

func TestRegenerate_AIFailureIsClassifiedAndLogged(t *testing.T) {
	s := newServer(t, func(context.Context, string) (string, error) {
		return "", errors.New("401 unauthorized: api key sk-abcdefghijklmnopqrstuvwx rejected")
	})
	n := s.createNote(t, "u1", "t", "c")

	w := s.do(t, http.MethodPost, "/api/v1/notes/"+n.ID+"/regenerate", "u1", map[string]string{"type": "both"})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decode[problem](t, w).Error
	assert.Equal(t, "API_ERROR", body.Type)
	assert.Equal(t, "HIGH", body.Severity)
	assert.True(t, body.CanRetry)
	assert.NotEmpty(t, body.UserMessage)
	assert.NotEmpty(t, body.Alternative)

	w = s.do(t, http.MethodGet, "/api/v1/notes/"+n.ID+"/ai/status", "u1", nil)
	status := decode[map[string]any](t, w)
	assert.Equal(t, "ERROR", status["status"])
	for _, half := range []string{"summary", "tags"} {
		body, ok := status[half].(map[string]any)
		require.True(t, ok, half)
		assert.NotNil(t, body["lastError"], half)
	}

	w = s.do(t, http.MethodGet, "/api/v1/ai/errors", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Errors []ailog.Entry `json:"errors"`
	}](t, w)
	require.Len(t, list.Errors, 2)
	assert.NotContains(t, list.Errors[0].Message, "sk-abcdefghijklmnopqrstuvwx")

	w = s.do(t, http.MethodGet, "/api/v1/ai/errors/stats", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[ailog.Stats](t, w)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByType["API_ERROR"])

	w = s.do(t, http.MethodPost, "/api/v1/ai/errors/"+list.Errors[0].ID+"/resolve", "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodPost, "/api/v1/ai/errors/"+list.Errors[0].ID+"/resolve", "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/ai/errors/patterns?days=7", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, okCompleter, func(c *httpapi.Config) {
		c.Limiter = httpapi.NewRateLimiter(0.001, 2)
	})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/notes", "u1", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/notes", "u1", nil).Code)
	w := s.do(t, http.MethodGet, "/api/v1/notes", "u1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/notes", "u2", nil).Code, "limits are per user")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, okCompleter)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smartnotes_http_requests_total")

	down := newServer(t, okCompleter, func(c *httpapi.Config) {
		c.Health = func(context.Context) error { return errors.New("db down") }
	})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/healthz", "", nil).Code)
}
