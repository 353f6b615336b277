package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CART_DEBOUNCE_DELAY", "")
	t.Setenv("CART_STORE", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:8086", cfg.APIBaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceDelay)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "redis", cfg.CartStore)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.NotEmpty(t, cfg.SessionFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("CART_DEBOUNCE_DELAY", "250ms")
	t.Setenv("VISITOR_TTL", "not-a-duration")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-3")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDelay)
	assert.Equal(t, 30*time.Minute, cfg.VisitorTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
}
