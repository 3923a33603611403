// internal/interfaces/http/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/your-org/storefront-backend/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			CORSAllowedOrigins: []string{"https://shop.example", "*.example.co"},
			CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		},
		JWT: config.JWTConfig{Secret: "test-secret"},
	}
}

func newEngine(mw gin.HandlerFunc, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", handler)
	r.OPTIONS("/ping", handler)
	return r
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestCORSExposesCartSessionHeader(t *testing.T) {
	r := newEngine(CORS(testConfig()), ok)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://shop.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Cart-Session", w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Cart-Session")
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORS(testConfig()), ok)

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://shop.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://shop.example", "*.example.co"}

	assert.True(t, originAllowed("https://shop.example", allowed))
	assert.True(t, originAllowed("https://admin.example.co", allowed))
	assert.False(t, originAllowed("https://evil.example.com", allowed))
	assert.True(t, originAllowed("https://anywhere.dev", []string{"*"}))
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := newEngine(AuthMiddleware(testConfig()), ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	r := newEngine(AuthMiddleware(testConfig()), ok)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthLetsGuestsThrough(t *testing.T) {
	var sawUser bool
	r := newEngine(OptionalAuthMiddleware(testConfig()), func(c *gin.Context) {
		_, sawUser = GetUserIDFromContext(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sawUser)
}

func TestTimeoutAnswersStalledHandlers(t *testing.T) {
	r := newEngine(Timeout(20*time.Millisecond), func(*gin.Context) {
		time.Sleep(200 * time.Millisecond)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeLimit(16))
	r.POST("/ping", ok)

	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
