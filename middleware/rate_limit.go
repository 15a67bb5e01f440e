package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/harukit/monpix/config"
	"github.com/harukit/monpix/utils"
)

const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	bucket  *rate.Limiter
	expires time.Time
}

var (
	limitersMu sync.Mutex
	limiters   = map[string]*clientLimiter{}
)

// RateLimitMiddleware throttles requests per client IP with a token
// bucket sized from the configured per-minute budget.
func RateLimitMiddleware() gin.HandlerFunc {
	cfg := config.Get()
	perMinute := cfg.RateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}

	return func(ctx *gin.Context) {
		if !takeToken(ctx.ClientIP(), limit, burst) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func takeToken(key string, limit rate.Limit, burst int) bool {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	now := time.Now()
	for k, cl := range limiters {
		if now.After(cl.expires) {
			delete(limiters, k)
		}
	}

	cl, ok := limiters[key]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(limit, burst)}
		limiters[key] = cl
	}
	cl.expires = now.Add(limiterIdleTTL)
	return cl.bucket.Allow()
}
