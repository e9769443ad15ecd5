package middleware

import (
	"strconv"

	"SProject/service/ratelimit"
	"SProject/tools/errs"

	"github.com/gin-gonic/gin"
)

// RateLimit 请求门卫：clientKey 取客户端IP。
// 拒绝时带上 Retry-After；存储不可达时整档拒绝（限流器是 fail-closed）。
func RateLimit(l *ratelimit.Limiter, tier ratelimit.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Consume(c.Request.Context(), tier, c.ClientIP())
		if err != nil {
			AbortFail(c, err)
			return
		}
		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			AbortFail(c, errs.ErrRateLimited.WrapMsg("retry later", "retry_after_sec", retryAfter))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
