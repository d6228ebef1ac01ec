package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agio-digital/session-keys-backend/internal/identity"
)

const userIDKey = "userID"

// AuthRequired verifies the bearer token and stores the subject user id on
// the request context.
func AuthRequired(verifier *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := verifier.FromAuthorizationHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing bearer token",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
