package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/common"
)

// Recovery turns a panic into a 500 envelope.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return RecoveryWith(log, func(c *gin.Context) {
		common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
	})
}

// RecoveryWith logs the panic and lets respond write the error body.
func RecoveryWith(log zerolog.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(RequestIDKey)).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic")
				respond(c)
			}
		}()
		c.Next()
	}
}
