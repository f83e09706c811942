package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status    int             `json:"status"`
	RequestID string          `json:"request_id"`
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_FixedWindow(t *testing.T) {
	rdb, mr := newRedis(t)
	r := gin.New()
	r.GET("/login", RateLimit(rdb, 2, time.Minute, KeyByIP("auth"), nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/login", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode(t, w).Error.Code)

	// new window
	mr.FastForward(time.Minute + time.Second)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit_BucketsAreSeparate(t *testing.T) {
	rdb, _ := newRedis(t)
	r := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/login", RateLimit(rdb, 1, time.Minute, KeyByIP("auth"), nil), ok)
	r.POST("/webhook", RateLimit(rdb, 1, time.Minute, KeyByIP("webhook"), nil), ok)

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/webhook", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code)
}

func TestRateLimit_PerUser(t *testing.T) {
	rdb, _ := newRedis(t)
	r := gin.New()
	r.GET("/me",
		func(c *gin.Context) { c.Set(CtxUserID, c.GetHeader("X-User")); c.Next() },
		RateLimit(rdb, 1, time.Minute, KeyByUserID(), nil),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)
	req := func(user string) *http.Request {
		rq := httptest.NewRequest(http.MethodGet, "/me", nil)
		rq.Header.Set("X-User", user)
		return rq
	}
	assert.Equal(t, http.StatusNoContent, serve(r, req("u1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, req("u1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, req("u2")).Code)
}

func TestRateLimit_AllowAndFailOpen(t *testing.T) {
	rdb, mr := newRedis(t)
	r := gin.New()
	r.GET("/health", RateLimit(rdb, 1, time.Minute, KeyByIP("health"), AllowPrivateIP()), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	private := func() *http.Request {
		rq := httptest.NewRequest(http.MethodGet, "/health", nil)
		rq.RemoteAddr = "10.0.0.5:4000"
		return rq
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, private()).Code)
	}

	// redis down: requests pass
	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}
}

func TestRealIP_IgnoresForwardingFromUntrustedPeer(t *testing.T) {
	r := gin.New()
	require.NoError(t, ConfigureClientIP(r, nil, ""))
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.20:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("CF-Connecting-IP", "10.0.0.9")
	assert.Equal(t, "198.51.100.20", serve(r, req).Body.String())
}

func TestRealIP_TrustedProxy(t *testing.T) {
	r := gin.New()
	require.NoError(t, ConfigureClientIP(r, []string{"10.0.0.0/8"}, ""))
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", serve(r, req).Body.String())

	// a client-supplied hop before the proxy is not taken at face value
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.7")
	assert.Equal(t, "203.0.113.7", serve(r, req).Body.String())
}

func TestRealIP_Platform(t *testing.T) {
	r := gin.New()
	require.NoError(t, ConfigureClientIP(r, nil, "cloudflare"))
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "172.64.0.1:443"
	req.Header.Set("CF-Connecting-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", serve(r, req).Body.String())

	assert.Error(t, ConfigureClientIP(gin.New(), []string{"not-an-ip"}, ""))
}

func TestRateLimit_RotatingForwardedForDoesNotEscape(t *testing.T) {
	rdb, _ := newRedis(t)
	r := gin.New()
	require.NoError(t, ConfigureClientIP(r, nil, ""))
	r.Use(RealIP())
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/login", RateLimit(rdb, 10, time.Minute, KeyByIP("auth"), nil), ok)
	r.GET("/health", RateLimit(rdb, 1, time.Minute, KeyByIP("health"), AllowPrivateIP()), ok)

	limited := 0
	for i := 0; i < 15; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "198.51.100.20:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		if serve(r, req).Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 5, limited)

	// a forged private address does not unlock the health allow-list
	health := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.20:5555"
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		req.Header.Set("X-Real-IP", "127.0.0.1")
		return req
	}
	assert.Equal(t, http.StatusNoContent, serve(r, health()).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, health()).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), ErrorHandler(helpers.NopLogger()))
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperror.Conflict("duplicate_slug", "slug is already in use").WithDetails(map[string]string{"slug": "taken"}))
	})
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db password is hunter2")) })
	r.GET("/written", func(c *gin.Context) {
		c.String(http.StatusTeapot, "already")
		_ = c.Error(errors.New("late"))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "duplicate_slug", env.Error.Code)
	assert.JSONEq(t, `{"slug":"taken"}`, string(env.Error.Details))
	assert.NotEmpty(t, env.RequestID)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode(t, w).Error.Code)
	assert.NotContains(t, w.Body.String(), "hunter2")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "already", w.Body.String())
}

func TestAuth(t *testing.T) {
	rdb, _ := newRedis(t)
	sessions := cache.NewSessionStore(rdb, time.Hour)
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, cache.Session{UserID: "u1", SessionID: "s1", Email: "a@b.co", Name: "Asha", Role: "customer"}))
	good, _, err := jwt.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	stale, _, err := jwt.GenerateAccessToken("u1", "s0")
	require.NoError(t, err)
	refresh, _, err := jwt.GenerateRefreshToken("u1", "s1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(sessions, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID)+"|"+c.GetString(CtxUserRole)+"|"+c.GetString(CtxUserEmail))
	})
	r.GET("/admin", Auth(sessions, jwt), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	bearer := func(path, tok string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		return req
	}

	w := serve(r, bearer("/me", good))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|customer|a@b.co", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessCookie, Value: good})
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	for name, tok := range map[string]string{"missing": "", "rotated session": stale, "refresh token": refresh, "garbage": "x.y.z"} {
		t.Run(name, func(t *testing.T) {
			w := serve(r, bearer("/me", tok))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", decode(t, w).Error.Code)
		})
	}

	w = serve(r, bearer("/admin", good))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode(t, w).Error.Code)

	require.NoError(t, sessions.Save(ctx, cache.Session{UserID: "u1", SessionID: "s1", Role: "admin"}))
	assert.Equal(t, http.StatusNoContent, serve(r, bearer("/admin", good)).Code)

	require.NoError(t, sessions.Delete(ctx, "u1"))
	assert.Equal(t, http.StatusUnauthorized, serve(r, bearer("/me", good)).Code)
}
