package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type stubAuth struct {
	users map[string]*model.User
	err   error
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, service.ErrUnauthorized
}

func newAuthRouter(auth Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "role": GetUserRole(c)})
	})
	r.GET("/admin", AuthMiddleware(auth), AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	customer := &model.User{ID: uuid.New(), Role: model.RoleCustomer}
	admin := &model.User{ID: uuid.New(), Role: model.RoleAdmin}
	r := newAuthRouter(stubAuth{users: map[string]*model.User{"c": customer, "a": admin}})

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "bogus").Code)

	w := do(r, http.MethodGet, "/me", "c")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), customer.ID.String())

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "c").Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", "a").Code)
}

func TestAuthMiddleware_StoreFailure(t *testing.T) {
	r := newAuthRouter(stubAuth{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/me", "x").Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)

	w := do(r, http.MethodPost, "/login", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimiter_CleanupKeepsActiveClients(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.allow("198.51.100.1"))

	clock = start.Add(9 * time.Minute)
	assert.True(t, rl.allow("198.51.100.2"))
	assert.True(t, rl.allow("198.51.100.2"))
	assert.False(t, rl.allow("198.51.100.2"))

	clock = start.Add(12 * time.Minute)
	rl.Cleanup(10 * time.Minute)
	assert.Equal(t, 1, rl.tracked())
	assert.False(t, rl.allow("198.51.100.2"), "limited client must stay limited after cleanup")
}

func TestRateLimiter_FullTableEvictsOldest(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.allow("limited"))
	assert.False(t, rl.allow("limited"))
	for i := 1; i < maxTrackedClients; i++ {
		clock = start.Add(time.Duration(i) * time.Millisecond)
		rl.allow(fmt.Sprintf("client-%d", i))
	}
	require.Equal(t, maxTrackedClients, rl.tracked())

	clock = clock.Add(time.Second)
	assert.False(t, rl.allow("client-9999"))
	assert.True(t, rl.allow("newcomer"))
	assert.Equal(t, maxTrackedClients, rl.tracked())
	assert.True(t, rl.allow("limited"), "oldest bucket was evicted to make room")
}

func TestRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
