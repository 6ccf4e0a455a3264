package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func sendFrom(handler http.Handler, remoteAddr, actor string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := limitedHandler(NewRateLimiter(1, 2))

	assert.Equal(t, http.StatusOK, sendFrom(handler, "10.0.0.1:4000", ownerHex))
	assert.Equal(t, http.StatusOK, sendFrom(handler, "10.0.0.1:4001", ownerHex))
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(handler, "10.0.0.1:4002", ownerHex))

	// buckets are per client host
	assert.Equal(t, http.StatusOK, sendFrom(handler, "10.0.0.2:4000", ownerHex))
}

func TestRateLimitMiddleware_RotatingActorHeader(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := limitedHandler(rl)

	allowed := 0
	for i := 0; i < 1000; i++ {
		actor := fmt.Sprintf("0x%040x", i+1)
		if sendFrom(handler, "10.0.0.9:5555", actor) == http.StatusOK {
			allowed++
		}
	}

	// a slow run may see one refill
	assert.LessOrEqual(t, allowed, 2)
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	now := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.getLimiter(fmt.Sprintf("10.1.0.%d", i))
	}
	assert.Equal(t, 50, rl.size())

	now = now.Add(limiterIdleTTL / 2)
	rl.getLimiter("10.1.0.0")

	now = now.Add(limiterIdleTTL * 3 / 4)
	rl.getLimiter("10.2.0.1")

	// only the recently used and the new bucket survive
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	limiter := rl.getLimiter("anyone")
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow())
	}
	assert.Same(t, limiter, rl.getLimiter("anyone"))
}
