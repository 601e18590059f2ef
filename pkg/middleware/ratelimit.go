package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionsdesk/pkg/config"
	"github.com/wyfcoding/optionsdesk/pkg/logger"
	"github.com/wyfcoding/optionsdesk/pkg/ratelimit"
)

// WalletAddressHeader 前端携带的已连接钱包地址
const WalletAddressHeader = "X-Wallet-Address"

// RateLimitMiddleware 按客户端 IP 限流，携带钱包地址时再按地址限流
// 两个桶都放行才继续；响应头反映剩余额度更少的那个桶
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := ratelimit.Limit{
		Rate:   cfg.QPS,
		Period: time.Second,
		Burst:  cfg.Burst,
	}
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		keys := []string{"ratelimit:ip:" + c.ClientIP()}
		if addr := strings.TrimSpace(c.GetHeader(WalletAddressHeader)); addr != "" {
			keys = append(keys, "ratelimit:wallet:"+addr)
		}

		var tightest *ratelimit.Result
		for _, key := range keys {
			res, err := limiter.Allow(c.Request.Context(), key, limit)
			if err != nil {
				// 限流后端故障时放行
				logger.Warn(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
				c.Next()
				return
			}
			if tightest == nil || !res.Allowed || (tightest.Allowed && res.Remaining < tightest.Remaining) {
				tightest = res
			}
			if !res.Allowed {
				break
			}
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max(limit.Burst, 1)))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(tightest.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(tightest.ResetAfter/time.Second), 10))

		if !tightest.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(tightest.RetryAfter/time.Second), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": tightest.RetryAfter.String(),
			})
			return
		}

		c.Next()
	}
}
