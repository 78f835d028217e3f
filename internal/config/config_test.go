package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/termchat/internal/protocol"
)

// TestNewConfigDefaults verifies the defaults match the documented server settings.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "0.0.0.0:8080", cfg.Address)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 1, cfg.MinUsernameLen)
	assert.Equal(t, 20, cfg.MaxUsernameLen)
	assert.Equal(t, 1, cfg.MinMessageLen)
	assert.Equal(t, 256, cfg.MaxMessageLen)
	assert.Empty(t, cfg.HTTPAddress)
	assert.Empty(t, cfg.DatabasePath)
}

// TestNewConfigFromEnv tests that environment variables override defaults
// and invalid values fall back to the defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("CHAT_ADDRESS", "127.0.0.1:9000")
	t.Setenv("CHAT_HTTP_ADDRESS", ":9001")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_CONNECTIONS", "3")
	t.Setenv("MAX_USERNAME_LEN", "not-a-number")
	t.Setenv("MAX_MESSAGE_LEN", "64")
	t.Setenv("STRICT_USERNAMES", "true")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "250ms")
	t.Setenv("HANDSHAKE_TIMEOUT", "5")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, ":9001", cfg.HTTPAddress)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.MaxConnections)
	assert.Equal(t, 20, cfg.MaxUsernameLen)
	assert.Equal(t, 64, cfg.MaxMessageLen)
	assert.True(t, cfg.StrictUsernames)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
}

// TestSanitize tests that unusable values are replaced.
func TestSanitize(t *testing.T) {
	cfg := Sanitize(Config{MinUsernameLen: 5, MaxUsernameLen: 2, MaxConnections: -1})

	assert.Equal(t, defaultAddress, cfg.Address)
	assert.Equal(t, defaultMaxConnections, cfg.MaxConnections)
	assert.Equal(t, 5, cfg.MinUsernameLen)
	assert.Equal(t, 20, cfg.MaxUsernameLen)
	assert.Equal(t, defaultMaxLineSize, cfg.MaxLineSize)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
}

// TestParseDuration accepts durations and plain seconds.
func TestParseDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseDuration("2", time.Second))
	assert.Equal(t, 150*time.Millisecond, parseDuration("150ms", time.Second))
	assert.Equal(t, time.Second, parseDuration("-4", time.Second))
}

// TestSanitizeKeepsRelayWithinClientLimit verifies the longest valid message
// from the longest valid username still fits a client frame, and that the
// server accepts the longest valid request.
func TestSanitizeKeepsRelayWithinClientLimit(t *testing.T) {
	cfg := Sanitize(Config{MaxUsernameLen: 5000, MaxMessageLen: 1 << 20, MinMessageLen: 1 << 20, MaxLineSize: 64})

	assert.Equal(t, maxUsernameCap, cfg.MaxUsernameLen)
	assert.LessOrEqual(t, protocol.MaxNotificationSize(cfg.MaxMessageLen, cfg.MaxUsernameLen), protocol.ClientMaxLineSize)
	assert.LessOrEqual(t, cfg.MinMessageLen, cfg.MaxMessageLen)
	assert.GreaterOrEqual(t, cfg.MaxLineSize, protocol.MaxRequestSize(cfg.MaxMessageLen))

	defaults := Sanitize(NewConfig())
	assert.Equal(t, defaultMaxMessage, defaults.MaxMessageLen)
	assert.Equal(t, defaultMaxLineSize, defaults.MaxLineSize)
	assert.Equal(t, 30*time.Second, defaults.HandshakeTimeout)
	assert.Equal(t, time.Minute, defaults.PongWait)
}

// TestIsValidUsernameBoundaries checks the length rule at and around both bounds.
func TestIsValidUsernameBoundaries(t *testing.T) {
	cfg := Config{MinUsernameLen: 3, MaxUsernameLen: 6}

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"empty", "", false},
		{"below min", "ab", false},
		{"exactly min", "abc", true},
		{"exactly max", "abcdef", true},
		{"above max", "abcdefg", false},
		{"whitespace only", "     ", false},
		{"trimmed to min", "  abc \n", true},
		{"trimmed still too long", " abcdefg ", false},
		{"multibyte counted as characters", "žžžžžž", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.IsValidUsername(tt.candidate))
		})
	}
}

// TestIsValidUsernameMatchesLengthRule checks the predicate against the
// plain length rule for a range of generated candidates.
func TestIsValidUsernameMatchesLengthRule(t *testing.T) {
	cfg := NewConfig()
	for n := 0; n <= cfg.MaxUsernameLen+2; n++ {
		candidate := " " + strings.Repeat("x", n) + "\t"
		want := cfg.MinUsernameLen <= n && n <= cfg.MaxUsernameLen
		assert.Equal(t, want, cfg.IsValidUsername(candidate), "length %d", n)
	}
}

// TestStrictUsernames tests the letters-and-whitespace pattern.
func TestStrictUsernames(t *testing.T) {
	cfg := NewConfig()
	cfg.StrictUsernames = true

	assert.True(t, cfg.IsValidUsername("alice"))
	assert.True(t, cfg.IsValidUsername("Mary Ann"))
	assert.False(t, cfg.IsValidUsername("alice42"))
	assert.False(t, cfg.IsValidUsername("bob!"))
}

// TestIsValidMessage checks the message bounds after trimming.
func TestIsValidMessage(t *testing.T) {
	cfg := Config{MinMessageLen: 1, MaxMessageLen: 5}

	assert.False(t, cfg.IsValidMessage(""))
	assert.False(t, cfg.IsValidMessage("   "))
	assert.True(t, cfg.IsValidMessage("h"))
	assert.True(t, cfg.IsValidMessage(" hello "))
	assert.False(t, cfg.IsValidMessage("hello!"))
}
