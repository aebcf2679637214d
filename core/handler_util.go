package core

import "github.com/gin-gonic/gin"

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError sends the unified failure payload. Authentication failures
// must all go through this with the same code/message pair so that rejected
// logins stay externally indistinguishable.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": errorPayload{Code: code, Message: message}})
}
