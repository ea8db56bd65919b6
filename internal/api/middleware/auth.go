package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"plantshop/internal/logger"

	"github.com/gin-gonic/gin"
)

// BearerSecret rejects requests whose Authorization header is not
// "Bearer <secret>". An empty secret rejects everything.
func BearerSecret(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Warn("Unauthorized request to %s from %s", c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
