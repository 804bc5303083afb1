package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartnotes/internal/shared"
)

// DefaultUserHeader carries the authenticated user id set by the upstream
// auth proxy.
const DefaultUserHeader = "X-User-ID"

const userKey = "smartnotes.user"

// ACL admits requests that carry a user id, optionally restricted to an
// allowlist.
type ACL struct {
	header  string
	allowed map[string]struct{}
}

// NewACL creates an ACL reading the user id from header. An empty allowlist
// admits every user.
func NewACL(header string, ids []string) *ACL {
	if header == "" {
		header = DefaultUserHeader
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{header: header, allowed: m}
}

// IsAllowed reports whether id may use the API.
func (a *ACL) IsAllowed(id string) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[id]
	return ok
}

// Middleware rejects anonymous and non-allowlisted requests.
func (a *ACL) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(a.header))
		if uid == "" {
			abort(c, http.StatusUnauthorized, shared.KindUnauthorized.String(), "로그인이 필요합니다")
			return
		}
		if !a.IsAllowed(uid) {
			abort(c, http.StatusForbidden, shared.KindForbidden.String(), "접근 권한이 없습니다")
			return
		}
		c.Set(userKey, uid)
		c.Next()
	}
}

// UserID returns the user id stored by ACL.Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}

// ParseAllowedUsers splits a comma, tab or newline separated list of ids.
func ParseAllowedUsers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\t' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
