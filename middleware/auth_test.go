package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnify/config"
	"learnify/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", JWTAuthBuyerMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"buyerID": c.GetString("buyerID")})
	})
	return router
}

func TestJWTAuthBuyerMiddleware(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	router := authTestRouter()

	token, err := utils.GenerateToken("buyer-1", "buyer@example.com", time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "buyer-1")
}

func TestJWTAuthBuyerMiddlewareRejectsMissingHeader(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	router := authTestRouter()

	req, _ := http.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthBuyerMiddlewareRejectsGarbageToken(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	router := authTestRouter()

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthBuyerMiddlewareRejectsExpiredToken(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	router := authTestRouter()

	token, err := utils.GenerateToken("buyer-1", "buyer@example.com", -time.Minute)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
