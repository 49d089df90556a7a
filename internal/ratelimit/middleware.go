package ratelimit

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fundnest/fundnest-api/internal/auth"
)

const MsgTooManyRequests = "Too many requests, please try again later."

// Middleware rejects requests with 429 once the client address has used up
// the limiter's window. It must run before the handler. Store errors admit
// the request.
func (l *Limiter) Middleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()

		d, err := l.Admit(c.Request.Context(), clientKey)
		if err != nil {
			log.Error("rate limiter unavailable, admitting request",
				zap.String("limiter", l.name),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := l.max - d.Count
		if remaining < 0 || !d.Allowed {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))

			log.Warn("rate limit exceeded",
				zap.String("limiter", l.name),
				zap.String("client", clientKey),
				zap.String("path", c.FullPath()))

			denied := auth.RateLimitError(MsgTooManyRequests)
			c.AbortWithStatusJSON(auth.StatusForCode(auth.ErrorCode(denied)), gin.H{
				"success": false,
				"message": auth.PublicMessage(denied),
			})
			return
		}

		c.Next()
	}
}
