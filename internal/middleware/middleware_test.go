package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hiring-negotiation/internal/config"
	"github.com/iliyamo/hiring-negotiation/internal/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func bucketConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user",
		Prefix:         "rl",
	}
}

func TestTokenBucketDrainsAndRefills(t *testing.T) {
	_, rdb := newRedis(t)
	b := NewBucket(bucketConfig(2), rdb)
	now := time.Unix(1_700_000_000, 0)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := b.Allow(ctx, "ws:u1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := b.Allow(ctx, "ws:u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := b.Allow(ctx, "ws:u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "buckets are per key")

	now = now.Add(time.Minute)
	d, err = b.Allow(ctx, "ws:u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestNilBucketAllows(t *testing.T) {
	b := NewBucket(config.RateLimitConfig{Enabled: false}, nil)
	assert.Nil(t, b)
	d, err := b.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestBucketFailsOpenWhenRedisIsDown(t *testing.T) {
	mr, rdb := newRedis(t)
	b := NewBucket(bucketConfig(1), rdb)
	mr.Close()

	d, err := b.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := bucketConfig(1)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, NewBucket(cfg, rdb)))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error { return c.String(http.StatusOK, UserID(c)) }, JWTAuth("secret"))

	tok, err := utils.NewAccessToken("secret", "client-1", time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + tok.Token, http.StatusOK, "client-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}
