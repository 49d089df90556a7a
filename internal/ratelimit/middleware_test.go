package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fundnest/fundnest-api/internal/config"
)

type failingStore struct{}

func (failingStore) Admit(context.Context, string, time.Time, time.Duration, int) (Decision, error) {
	return Decision{}, errors.New("store unavailable")
}

func newLimitedRouter(t *testing.T, l *Limiter) (*gin.Engine, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	calls := 0
	r := gin.New()
	r.POST("/login", l.Middleware(zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r, &calls
}

func post(r http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	clock := newFakeClock()
	l := New("login", config.LimitConfig{Window: 15 * time.Minute, MaxRequests: 2}, newTestMemoryStore(t, clock), WithClock(clock.Now))
	r, calls := newLimitedRouter(t, l)

	rec := post(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(5 * time.Minute)
	rec = post(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, MsgTooManyRequests, body["message"])

	assert.Equal(t, 2, *calls)

	// Another client is unaffected
	rec = post(r, "198.51.100.7:4321")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, *calls)
}

func TestMiddleware_RetryAfterRoundsUp(t *testing.T) {
	clock := newFakeClock()
	l := New("general", config.LimitConfig{Window: time.Minute, MaxRequests: 1}, newTestMemoryStore(t, clock), WithClock(clock.Now))
	r, _ := newLimitedRouter(t, l)

	post(r, "192.0.2.1:1234")
	clock.Advance(time.Minute - 1500*time.Millisecond)

	rec := post(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	clock.Advance(1499 * time.Millisecond)
	rec = post(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestMiddleware_FailsOpen(t *testing.T) {
	l := New("general", config.LimitConfig{Window: time.Minute, MaxRequests: 1}, failingStore{})
	r, calls := newLimitedRouter(t, l)

	for i := 0; i < 3; i++ {
		rec := post(r, "192.0.2.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, *calls)
}
