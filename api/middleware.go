package api

import (
	"fmt"
	"strings"
	"time"

	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AuthEnable {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, unauthorized("Authorization header required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			respondError(c, unauthorized("Invalid Authorization header format"))
			return
		}

		if parts[1] != cfg.AuthKey {
			respondError(c, unauthorized("Invalid token"))
			return
		}

		c.Next()
	}
}

func unauthorized(detail string) error {
	return ffmpeg.NewError(ffmpeg.KindUnauthorized, detail, nil)
}

// Recovery turns a panic into an internal_error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		respondError(c, fmt.Errorf("panic: %v", recovered))
	})
}

// RequestID tags each request with an id, reusing a sane client-supplied
// X-Request-ID, and stores it in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one structured entry per request.
func AccessLog() gin.HandlerFunc {
	base := logging.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := logging.FromContext(c.Request.Context(), base)
		logger.Info().
			Str(logging.FieldMethod, c.Request.Method).
			Str(logging.FieldRoute, c.FullPath()).
			Int(logging.FieldStatus, c.Writer.Status()).
			Dur(logging.FieldDuration, time.Since(start)).
			Str(logging.FieldClientIP, c.ClientIP()).
			Msg("request handled")
	}
}
