package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"smartnotes/internal/shared"
)

// RateLimiter restricts request frequency per user with a token bucket.
type RateLimiter struct {
	mu      sync.Mutex
	users   map[string]*userLimiter
	limit   rate.Limit
	burst   int
	idle    time.Duration
	swept   time.Time
	nowFunc func() time.Time
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows rps requests per second per user with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		users:   make(map[string]*userLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		nowFunc: time.Now,
	}
}

// Allow returns false if user hits the limit.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	r.sweep(now)
	u, ok := r.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(r.limit, r.burst)}
		r.users[userID] = u
	}
	u.seen = now
	return u.lim.AllowN(now, 1)
}

// sweep drops limiters of users idle for longer than r.idle.
func (r *RateLimiter) sweep(now time.Time) {
	if now.Sub(r.swept) < r.idle {
		return
	}
	r.swept = now
	for id, u := range r.users {
		if now.Sub(u.seen) > r.idle {
			delete(r.users, id)
		}
	}
}

// Middleware checks the rate limit of the authenticated user. It must run
// after ACL.Middleware.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := UserID(c); uid != "" && !r.Allow(uid) {
			c.Header("Retry-After", "1")
			abort(c, http.StatusTooManyRequests, shared.KindLimitExceeded.String(), "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.")
			return
		}
		c.Next()
	}
}
