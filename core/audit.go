package core

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// AuditMiddleware records request metadata and outcome for every request,
// independent of the authorization result. Logging is best-effort and never
// blocks or alters the decision.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log.Printf("audit: -> %s %s", c.Request.Method, c.Request.URL.Path)

		c.Next()

		principal := "-"
		if p := currentPrincipal(c); p != nil {
			principal = p.Name
		}
		log.Printf("audit: <- %s %s principal=%s status=%d duration=%s",
			c.Request.Method, c.Request.URL.Path, principal, c.Writer.Status(), time.Since(start))
	}
}
