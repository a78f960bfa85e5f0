package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Data service backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Broadcast bus implementations
const (
	BroadcastRedis  = "redis"
	BroadcastMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Backend    string // "redis" | "sqlite"
	SQLitePath string // database file for the sqlite backend
	Broadcast  string // "redis" | "memory", defaults to the backend's

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// Sign-in
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	SessionSecret    string        // HS256 key, >= 32 bytes
	SessionTTL       time.Duration // session cookie lifetime
	CookieSecure     bool          // false only for plain-http development

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict infra endpoints to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateBurst        int // mutation requests allowed in a burst, per IP
	RateRefillPerMin int // mutation tokens refilled per minute, per IP

	// Homepage sync (optional)
	HomepageFile         string        // bookmarks.yaml or services.yaml to import periodically
	HomepageUser         string        // owner of the imported bookmarks
	HomepageSyncInterval time.Duration // ex: 10m, 0 = import once at start-up
}

// Load reads the full server configuration. It panics on missing or
// invalid required values.
func Load() *Config {
	cfg := LoadData()

	cfg.OIDCIssuer = getenv("NEXMARK_OIDC_ISSUER", "https://accounts.google.com")
	cfg.OIDCClientID = requireEnv("NEXMARK_OIDC_CLIENT_ID")
	cfg.OIDCClientSecret = requireEnv("NEXMARK_OIDC_CLIENT_SECRET")
	cfg.SessionSecret = requireEnv("NEXMARK_SESSION_SECRET")
	cfg.SessionTTL = mustDuration("NEXMARK_SESSION_TTL", 7*24*time.Hour)
	cfg.CookieSecure = mustBool("NEXMARK_COOKIE_SECURE", true)

	if len(cfg.SessionSecret) < 32 {
		panic("❌ FATAL: NEXMARK_SESSION_SECRET must be at least 32 bytes")
	}

	cfg.HomepageFile = getenv("NEXMARK_HOMEPAGE_FILE", "")
	if cfg.HomepageFile != "" {
		cfg.HomepageUser = requireEnv("NEXMARK_HOMEPAGE_USER")
		cfg.HomepageSyncInterval = mustDuration("NEXMARK_HOMEPAGE_SYNC_INTERVAL", 10*time.Minute)
	}

	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.OIDCClientSecret = "***REDACTED***"
		cfgCopy.SessionSecret = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// LoadData reads only what is needed to reach the data service
// (logging, backend, Redis). Used by offline commands.
func LoadData() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("NEXMARK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("NEXMARK_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("NEXMARK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("NEXMARK_PRETTY_LOG", true),

		// Data service
		Backend:    strings.ToLower(getenv("NEXMARK_BACKEND", BackendRedis)),
		SQLitePath: getenv("NEXMARK_SQLITE_PATH", "nexmark.db"),

		// Redis settings
		RedisUser:           getenv("NEXMARK_REDIS_USERNAME", ""),
		RedisPassword:       getenv("NEXMARK_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("NEXMARK_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("NEXMARK_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("NEXMARK_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("NEXMARK_TRUST_PROXY", false),

		RateBurst:        getenvInt("NEXMARK_RATE_BURST", 20),
		RateRefillPerMin: getenvInt("NEXMARK_RATE_REFILL_PER_MIN", 60),
	}

	switch cfg.Backend {
	case BackendRedis:
	case BackendSQLite:
	default:
		panic(fmt.Sprintf("❌ FATAL: NEXMARK_BACKEND must be %q or %q, got %q", BackendRedis, BackendSQLite, cfg.Backend))
	}

	defaultBroadcast := BroadcastMemory
	if cfg.Backend == BackendRedis {
		defaultBroadcast = BroadcastRedis
	}
	cfg.Broadcast = strings.ToLower(getenv("NEXMARK_BROADCAST", defaultBroadcast))
	switch cfg.Broadcast {
	case BroadcastRedis, BroadcastMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: NEXMARK_BROADCAST must be %q or %q, got %q", BroadcastRedis, BroadcastMemory, cfg.Broadcast))
	}

	if cfg.NeedsRedis() {
		cfg.RedisAddr = requireEnv("NEXMARK_REDIS_ADDR")
	}

	return cfg
}

// NeedsRedis reports whether any component is configured on Redis
func (c *Config) NeedsRedis() bool {
	return c.Backend == BackendRedis || c.Broadcast == BroadcastRedis
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
