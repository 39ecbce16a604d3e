package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// UserIDHeader carries the authenticated user's id. Authentication itself
	// happens upstream; this service trusts the header.
	UserIDHeader = "X-User-ID"

	// UserIDKey is the key used to store the user id in the context
	UserIDKey = "user_id"
)

// Identity middleware requires a valid user id on every request and makes it
// available to handlers. Requests without one are rejected before routing
// reaches any handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing " + UserIDHeader + " header",
				},
			})
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid " + UserIDHeader + " header",
				},
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID retrieves the authenticated user id from the gin context
func GetUserID(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(UserIDKey); exists {
		if userID, ok := v.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}
