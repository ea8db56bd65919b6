package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"plantshop/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a JSON 500. A panic caused by the
// client hanging up is dropped without a response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if clientGone(recovered) {
				c.Abort()
				return
			}
			if gin.IsDebugging() {
				log.Error("Panic serving %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, recovered, debug.Stack())
			} else {
				log.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}()
		c.Next()
	}
}

func clientGone(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	var sysErr *os.SyscallError
	if !errors.As(err, &opErr) || !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
