package middleware

import (
	"strconv"
	"strings"
	"time"

	"paygate/internal/core/ports"
	"paygate/pkg/apperror"
	"paygate/pkg/protocol"
	"paygate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimiter limits requests per funding source, falling back to the
// client IP for anonymous requests. Store errors let the request through.
func RateLimiter(store ports.RateLimitStore, tokens ports.TokenService, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := group + ":" + identify(c, tokens)

		allowed, remaining, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}
		c.Next()
	}
}

// identify names the wallet a request claims. Claims are not verified here;
// an unverifiable claim only spends its own quota.
func identify(c *gin.Context, tokens ports.TokenService) string {
	if id := c.GetHeader(protocol.HeaderFundingSource); id != "" {
		return "fs:" + id
	}
	if auth := c.GetHeader(protocol.HeaderAuthorization); tokens != nil && strings.HasPrefix(auth, protocol.BearerPrefix) {
		if claims, err := tokens.Validate(strings.TrimPrefix(auth, protocol.BearerPrefix)); err == nil {
			return "fs:" + claims.FundingSourceID
		}
	}
	return "ip:" + c.ClientIP()
}
