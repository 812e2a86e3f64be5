package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/offerscout/models"
)

// APIKeyContextKey is where Auth stores the caller's key for RateLimit.
const APIKeyContextKey = "api_key"

// Auth returns API-key authentication middleware.
//
// Supports three styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//	?api_key=<key>   (GET only, for EventSource clients that cannot set headers)
//
// If apiKeys is empty, the middleware is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !validKey(keys, key) {
			unauthorized(c, "invalid API key")
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

func validKey(keys [][]byte, key string) bool {
	candidate := []byte(key)
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, candidate)
	}
	return ok == 1
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.SearchResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer, then the
// query string on GET requests.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c.Request.Method == http.MethodGet {
		return c.Query("api_key")
	}
	return ""
}
