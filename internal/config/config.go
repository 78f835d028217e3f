// Package config provides the immutable runtime configuration for the chat
// server together with the username and message validators derived from it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/termchat/internal/protocol"
)

// RateLimitConfig defines the parameters for per-session message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration. It is built once at startup and
// passed by value afterwards; nothing mutates it while the server runs.
type Config struct {
	// Address is the TCP bind address for the line protocol.
	Address string
	// HTTPAddress enables the health endpoint and WebSocket transport when non-empty.
	HTTPAddress    string
	AllowedOrigins []string

	// MaxConnections bounds concurrent sessions and sizes each session mailbox.
	MaxConnections int

	MinUsernameLen  int
	MaxUsernameLen  int
	MinMessageLen   int
	MaxMessageLen   int
	StrictUsernames bool

	// MaxLineSize is the longest frame accepted from a peer, in bytes.
	MaxLineSize int
	RateLimit   RateLimitConfig

	// HandshakeTimeout bounds the time a connection may take to log in.
	HandshakeTimeout time.Duration
	// PongWait is how long a WebSocket peer may stay silent before it is
	// dropped. Pings go out at nine tenths of it.
	PongWait time.Duration

	DatabasePath string
	LogLevel     string
	LogPath      string
}

const (
	defaultAddress        = "0.0.0.0:8080"
	defaultMaxConnections = 10
	defaultMinUsername    = 1
	defaultMaxUsername    = 20
	defaultMinMessage     = 1
	defaultMaxMessage     = 256
	defaultMaxLineSize    = 4096
	defaultBurst          = 5

	defaultHandshakeTimeout = 30 * time.Second
	defaultPongWait         = 60 * time.Second

	// Caps usernames so connection notices stay far below the client limit.
	maxUsernameCap = 1024
)

func defaultConfig() Config {
	return Config{
		Address: defaultAddress,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxConnections: defaultMaxConnections,
		MinUsernameLen: defaultMinUsername,
		MaxUsernameLen: defaultMaxUsername,
		MinMessageLen:  defaultMinMessage,
		MaxMessageLen:  defaultMaxMessage,
		MaxLineSize:    defaultMaxLineSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: time.Second,
		},
		HandshakeTimeout: defaultHandshakeTimeout,
		PongWait:         defaultPongWait,
		LogLevel:         "info",
	}
}

// Sanitize returns a copy of cfg with unusable values replaced by defaults.
func Sanitize(cfg Config) Config {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}

	if cfg.MinUsernameLen < 0 {
		cfg.MinUsernameLen = defaultMinUsername
	}
	if cfg.MaxUsernameLen < cfg.MinUsernameLen {
		cfg.MaxUsernameLen = max(defaultMaxUsername, cfg.MinUsernameLen)
	}
	if cfg.MinMessageLen < 0 {
		cfg.MinMessageLen = defaultMinMessage
	}
	if cfg.MaxMessageLen < cfg.MinMessageLen {
		cfg.MaxMessageLen = max(defaultMaxMessage, cfg.MinMessageLen)
	}

	// Every relayed frame has to fit the client's line limit, and every
	// valid request has to fit ours.
	cfg.MaxUsernameLen = min(cfg.MaxUsernameLen, maxUsernameCap)
	cfg.MinUsernameLen = min(cfg.MinUsernameLen, cfg.MaxUsernameLen)
	cfg.MaxMessageLen = min(cfg.MaxMessageLen, protocol.MaxDataRunes(protocol.ClientMaxLineSize, cfg.MaxUsernameLen))
	cfg.MinMessageLen = min(cfg.MinMessageLen, cfg.MaxMessageLen)

	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = defaultMaxLineSize
	}
	cfg.MaxLineSize = max(cfg.MaxLineSize, protocol.MaxRequestSize(max(cfg.MaxMessageLen, cfg.MaxUsernameLen)))
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return defaultConfig()
}

// NewConfigFromEnv creates a Config from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() Config {
	cfg := defaultConfig()

	if addr := os.Getenv("CHAT_ADDRESS"); addr != "" {
		cfg.Address = addr
	}
	if addr := os.Getenv("CHAT_HTTP_ADDRESS"); addr != "" {
		cfg.HTTPAddress = addr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	cfg.MaxConnections = envInt("MAX_CONNECTIONS", cfg.MaxConnections)
	cfg.MinUsernameLen = envInt("MIN_USERNAME_LEN", cfg.MinUsernameLen)
	cfg.MaxUsernameLen = envInt("MAX_USERNAME_LEN", cfg.MaxUsernameLen)
	cfg.MinMessageLen = envInt("MIN_MESSAGE_LEN", cfg.MinMessageLen)
	cfg.MaxMessageLen = envInt("MAX_MESSAGE_LEN", cfg.MaxMessageLen)
	cfg.MaxLineSize = envInt("MAX_LINE_SIZE", cfg.MaxLineSize)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	if strict := os.Getenv("STRICT_USERNAMES"); strict != "" {
		if parsed, err := strconv.ParseBool(strict); err == nil {
			cfg.StrictUsernames = parsed
		}
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}
	if timeout := os.Getenv("HANDSHAKE_TIMEOUT"); timeout != "" {
		cfg.HandshakeTimeout = parseDuration(timeout, cfg.HandshakeTimeout)
	}
	if wait := os.Getenv("WS_PONG_WAIT"); wait != "" {
		cfg.PongWait = parseDuration(wait, cfg.PongWait)
	}

	if path := os.Getenv("CHAT_DATABASE"); path != "" {
		cfg.DatabasePath = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if path := os.Getenv("LOG_PATH"); path != "" {
		cfg.LogPath = path
	}

	return Sanitize(cfg)
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return parseIntValue(value, defaultValue)
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts either a Go duration ("500ms") or whole seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
