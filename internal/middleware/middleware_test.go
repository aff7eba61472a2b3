package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/logger"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/me", Auth(testSecret), func(c *gin.Context) {
		user, _ := UserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "staff": user.IsStaff})
	})
	r.GET("/admin", Auth(testSecret), RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func doRequest(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	token, err := GenerateToken(User{ID: 42, Email: "a@example.com"}, testSecret, time.Hour)
	require.NoError(t, err)

	w := doRequest(authRouter(), "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42,"staff":false}`, w.Body.String())
}

func TestAuthRejectsBadTokens(t *testing.T) {
	expired, err := GenerateToken(User{ID: 42}, testSecret, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := GenerateToken(User{ID: 42}, "other-secret", time.Hour)
	require.NoError(t, err)
	noUser, err := GenerateToken(User{}, testSecret, time.Hour)
	require.NoError(t, err)

	r := authRouter()
	for name, token := range map[string]string{
		"missing":   "",
		"expired":   expired,
		"wrong key": wrongKey,
		"no user":   noUser,
		"garbage":   "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			w := doRequest(r, "/me", token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 42})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	w := doRequest(authRouter(), "/me", signed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireStaff(t *testing.T) {
	r := authRouter()

	user, err := GenerateToken(User{ID: 1}, testSecret, time.Hour)
	require.NoError(t, err)
	staff, err := GenerateToken(User{ID: 2, IsStaff: true}, testSecret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, doRequest(r, "/admin", user).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(r, "/admin", staff).Code)
}

func TestRequestIDIsEchoedAndGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	w = doRequest(r, "/", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())
}

func TestRecoveryReturns500(t *testing.T) {
	w := doRequest(authRouter(), "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestHTTPMetricsCountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/trips/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, "/api/trips/1", "")
	doRequest(r, "/api/trips/2", "")
	doRequest(r, "/nowhere", "")

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{endpoint="/api/trips/:id",method="GET",status="200"} 2
http_requests_total{endpoint="unmatched",method="GET",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"))
}
