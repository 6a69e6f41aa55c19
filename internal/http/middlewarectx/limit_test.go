package middlewarectx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/lib/clock"
)

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(uid string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if uid != "" {
			req = req.WithContext(middlewarectx.WithIdentity(req.Context(), uid, "user"))
		}
		return req
	}

	t.Run("blocks requests exceeding burst", func(t *testing.T) {
		mw := middlewarectx.RateLimitMiddleware(newNoopLogger(), middlewarectx.NewUserLimiter(0.001, 2))(okHandler)

		for range 2 {
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, request("user-1"))
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := httptest.NewRecorder()
		mw.ServeHTTP(w, request("user-1"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "too many requests")
	})

	t.Run("users have separate buckets", func(t *testing.T) {
		mw := middlewarectx.RateLimitMiddleware(newNoopLogger(), middlewarectx.NewUserLimiter(0.001, 1))(okHandler)

		w := httptest.NewRecorder()
		mw.ServeHTTP(w, request("user-1"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mw.ServeHTTP(w, request("user-2"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mw.ServeHTTP(w, request("user-1"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("anonymous requests limited by address", func(t *testing.T) {
		mw := middlewarectx.RateLimitMiddleware(newNoopLogger(), middlewarectx.NewUserLimiter(0.001, 1))(okHandler)

		w := httptest.NewRecorder()
		mw.ServeHTTP(w, request(""))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mw.ServeHTTP(w, request(""))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestUserLimiter_EvictsIdleBuckets(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	limiter := middlewarectx.NewUserLimiter(10, 1,
		middlewarectx.WithIdleTTL(time.Minute),
		middlewarectx.WithLimiterClock(c))

	for i := range 100 {
		assert.True(t, limiter.Allow(fmt.Sprintf("user-%d", i)))
	}
	assert.Equal(t, 100, limiter.Len())

	c.Advance(30 * time.Second)
	limiter.Allow("user-0")
	assert.Equal(t, 100, limiter.Len())

	c.Advance(45 * time.Second)
	assert.True(t, limiter.Allow("user-new"))
	assert.Equal(t, 2, limiter.Len(), "only user-0 and user-new were seen within the last minute")
}

func TestUserLimiter_IdleTTLCoversRefill(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	// bucket наполняется 100 секунд, поэтому минута простоя не удаляет его
	limiter := middlewarectx.NewUserLimiter(0.1, 10,
		middlewarectx.WithIdleTTL(time.Minute),
		middlewarectx.WithLimiterClock(c))

	limiter.Allow("user-1")
	c.Advance(61 * time.Second)
	limiter.Allow("user-2")
	assert.Equal(t, 2, limiter.Len())

	c.Advance(100 * time.Second)
	limiter.Allow("user-2")
	assert.Equal(t, 1, limiter.Len())
}
