package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// PanicResponder writes the response for a request whose handler panicked
type PanicResponder func(c *gin.Context)

// Recovery logs a handler panic with its stack and request identity, then
// lets respond write the reply. A nil respond answers a bare 500.
func Recovery(logger *slog.Logger, respond PanicResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Error("Recovered from handler panic",
				"panic", fmt.Sprint(r),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"correlation_id", GetCorrelationID(c),
				"stack", string(debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			if respond == nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			respond(c)
			c.Abort()
		}()

		c.Next()
	}
}
