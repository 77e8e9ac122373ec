package middleware

import (
	"net/http"
	"time"

	"paygate/internal/core/ports"
	"paygate/pkg/apperror"
	"paygate/pkg/protocol"
	"paygate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxRequestID  = "request_id"
	CtxActor      = "actor"
	CtxResourceID = "resource_id"

	adminActor = "admin"
)

// RequestID propagates the caller's X-Request-Id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(protocol.HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(protocol.HeaderRequestID, id)
		c.Next()
	}
}

// AdminAuth admits requests whose X-Admin-Key matches the configured
// argon2id hash.
func AdminAuth(hashSvc ports.HashService, keyHash string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(protocol.HeaderAdminKey)
		if key == "" || keyHash == "" {
			response.Error(c, apperror.ErrInvalidAdminKey())
			c.Abort()
			return
		}

		ok, err := hashSvc.Verify(key, keyHash)
		if err != nil {
			log.Error().Err(err).Msg("admin key verification failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if !ok {
			response.Error(c, apperror.ErrInvalidAdminKey())
			c.Abort()
			return
		}

		c.Set(CtxActor, adminActor)
		c.Next()
	}
}

// MaxBodySize limits the request body. Reads past the limit fail and the
// handler answers 413.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(CtxRequestID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.New(protocol.CodeInfrastructure, "Internal server error", http.StatusInternalServerError).In(apperror.PhaseInfrastructure))
				c.Abort()
			}
		}()
		c.Next()
	}
}
