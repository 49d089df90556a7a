package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/fundnest/fundnest-api/internal/config"
)

const testPassword = "correct-horse-battery"

var testEpoch = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// testClock is a manually advanced clock shared by the service, the token
// issuer and the memory repository.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:            "test-secret-key",
		TokenExpiration:      time.Hour,
		BcryptCost:           bcrypt.MinCost,
		ResetTokenExpiration: time.Hour,
		ResetURLBase:         "http://localhost:3000/reset-password",
		MinPasswordLength:    8,
	}
}

type testEnv struct {
	svc    *Service
	repo   *memoryRepository
	tokens *TokenIssuer
	clock  *testClock
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	clock := newTestClock()
	repo := newMemoryRepository(clock.Now)

	tokens, err := NewTokenIssuer(cfg.JWTSecret, cfg.TokenExpiration, clock.Now)
	require.NoError(t, err)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := NewService(cfg, newTestLogger(t), repo, NewBcryptHasher(cfg.BcryptCost), tokens, opts...)

	return &testEnv{svc: svc, repo: repo, tokens: tokens, clock: clock}
}

func (e *testEnv) register(t *testing.T, email string, role Role) *AuthResult {
	t.Helper()

	result, err := e.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      role,
	})
	require.NoError(t, err)
	return result
}

// forgot requests a reset for email and returns the raw token from the link.
func (e *testEnv) forgot(t *testing.T, email string) string {
	t.Helper()

	result, err := e.svc.ForgotPassword(context.Background(), email)
	require.NoError(t, err)
	require.NotEmpty(t, result.ResetLink)
	return tokenFromLink(t, result.ResetLink)
}
