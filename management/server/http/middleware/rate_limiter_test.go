package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIRateLimiter_Middleware(t *testing.T) {
	rl := NewAPIRateLimiter(&RateLimiterConfig{
		RequestsPerMinute: 1,
		Burst:             2,
		CleanupInterval:   time.Hour,
		LimiterTTL:        time.Hour,
	})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/updates/check", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1001").Code)

	rec := do("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other clients keep their own budget
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1000").Code)
}

func TestAPIRateLimiter_Cleanup(t *testing.T) {
	rl := NewAPIRateLimiter(&RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             1,
		CleanupInterval:   time.Hour,
		LimiterTTL:        time.Minute,
	})
	defer rl.Stop()

	allowed, _ := rl.Reserve("client")
	assert.True(t, allowed)

	rl.cleanup(time.Now().Add(2 * time.Minute))

	rl.mu.Lock()
	assert.Empty(t, rl.limiters)
	rl.mu.Unlock()

	allowed, _ = rl.Reserve("client")
	assert.True(t, allowed, "a collected limiter starts with a full bucket")
}
