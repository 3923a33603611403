// internal/interfaces/http/middleware/cors.go
package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
)

// cartSessionHeader carries the guest cart token on both requests and
// responses.
const cartSessionHeader = "X-Cart-Session"

// CORS handles cross-origin requests from the storefront. The cart session
// header is exposed explicitly; without that, browser code never sees the
// token a response minted for a guest cart.
func CORS(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORSAllowedMethods, ", ")
	allowHeaders := cfg.Security.CORSAllowedHeaders
	if !slices.Contains(allowHeaders, cartSessionHeader) {
		allowHeaders = append(allowHeaders, cartSessionHeader)
	}
	headers := strings.Join(allowHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if originAllowed(origin, cfg.Security.CORSAllowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", cartSessionHeader)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originAllowed matches an origin against the configured list. Entries of
// the form *.example.com admit any subdomain.
func originAllowed(origin string, allowed []string) bool {
	for _, entry := range allowed {
		if entry == "*" || entry == origin {
			return true
		}
		if strings.HasPrefix(entry, "*.") && strings.HasSuffix(origin, strings.TrimPrefix(entry, "*")) {
			return true
		}
	}
	return false
}
