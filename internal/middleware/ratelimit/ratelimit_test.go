package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 5, Logger: zap.NewNop()})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.allow("10.0.0.1"))
	}
	assert.False(t, rl.allow("10.0.0.1"))
}

func TestSeparateBucketsPerKey(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, Logger: zap.NewNop()})
	defer rl.Stop()

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))
}

func TestTokensRefill(t *testing.T) {
	rl := New(Config{
		MaxRequestsPerMinute: 10,
		WindowDuration:       100 * time.Millisecond,
		Logger:               zap.NewNop(),
	})
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		require.True(t, rl.allow("10.0.0.1"))
	}
	require.False(t, rl.allow("10.0.0.1"))

	// One refill interval restores at least one token.
	time.Sleep(25 * time.Millisecond)
	assert.True(t, rl.allow("10.0.0.1"))
}

func TestMiddlewareRejectsWithStatus429(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2, Logger: zap.NewNop()})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
