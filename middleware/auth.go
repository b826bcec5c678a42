package middleware

import (
	"net/http"
	"strings"

	"learnify/utils"

	"github.com/gin-gonic/gin"
)

// JWTAuthBuyerMiddleware authenticates the buyer and puts the buyer ID into
// the request context for scoped handlers.
func JWTAuthBuyerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		buyerID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil || buyerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		c.Set("buyerID", buyerID)
		c.Next()
	}
}
