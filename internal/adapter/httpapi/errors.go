package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/shared"
)

// aiErrorBody is the wire form of *aierr.Error.
type aiErrorBody struct {
	Type        aierr.Type     `json:"type"`
	Severity    aierr.Severity `json:"severity"`
	Message     string         `json:"message"`
	UserMessage string         `json:"userMessage"`
	CanRetry    bool           `json:"canRetry"`
	RetryAfter  int            `json:"retryAfter,omitempty"`
	Alternative string         `json:"alternative,omitempty"`
}

func newAIErrorBody(e *aierr.Error) *aiErrorBody {
	if e == nil {
		return nil
	}
	return &aiErrorBody{
		Type:        e.Type,
		Severity:    e.Severity,
		Message:     e.Message,
		UserMessage: e.UserMessage,
		CanRetry:    e.CanRetry,
		RetryAfter:  e.RetryAfterSeconds(),
		Alternative: e.Alternative,
	}
}

type problemBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var defaultMessages = map[shared.Kind]string{
	shared.KindNotFound:      "요청한 리소스를 찾을 수 없습니다",
	shared.KindValidation:    "요청 형식이 올바르지 않습니다",
	shared.KindUnauthorized:  "로그인이 필요합니다",
	shared.KindForbidden:     "접근 권한이 없습니다",
	shared.KindLimitExceeded: "요청 한도를 초과했습니다",
	shared.KindTimeout:       "요청 시간이 초과되었습니다",
	shared.KindUnavailable:   "일시적으로 서비스를 사용할 수 없습니다",
}

// writeError renders err. AI failures keep their classification; other
// errors are mapped by kind and never leak internal messages.
func (h *handler) writeError(c *gin.Context, err error) {
	if e, ok := aierr.As(err); ok {
		if e.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(e.RetryAfterSeconds()))
		}
		c.JSON(e.HTTPStatus(), gin.H{"error": newAIErrorBody(e)})
		return
	}

	kind := shared.KindOf(err)
	status := shared.HTTPStatus(kind)
	msg, ok := shared.UserMessage(err)
	if !ok {
		msg = defaultMessages[kind]
		if msg == "" {
			msg = "서버 오류가 발생했습니다"
		}
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("route", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": problemBody{Code: kind.String(), Message: msg}})
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": problemBody{Code: code, Message: msg}})
}

func badRequest(c *gin.Context) {
	abort(c, http.StatusUnprocessableEntity, shared.KindValidation.String(), defaultMessages[shared.KindValidation])
}
