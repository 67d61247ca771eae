package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Fingerprint sources for challenge derivation.
const (
	FingerprintFromHost   = "host"
	FingerprintFromRemote = "remote"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	// ProductName is shown on the status page and in loader output.
	ProductName string

	// DatabaseURL enables durable storage. Empty keeps all state in memory
	// and disables the audit log.
	DatabaseURL string

	AdminUser     string
	AdminPassword string

	// AdminIDs are the chat identities allowed to run admin commands.
	AdminIDs []string

	// BotToken authenticates the chat front-end against /v1/commands.
	// Empty disables the command webhook.
	BotToken string

	KeyPrefix   string
	MaxGenerate int

	// PublicURL is where deployed payloads reach /auth.
	PublicURL string

	PayloadDir string
	PayloadID  string

	// FingerprintSource is "host" (this server's hardware address) or
	// "remote" (requester IP and user agent).
	FingerprintSource string

	AuditRetentionDays int

	// KeyRetentionDays is how long expired keys are kept before the sweeper
	// removes them. 0 keeps them forever.
	KeyRetentionDays int
	SweepInterval    time.Duration

	AuthRate  float64
	AuthBurst int

	EnableTestEndpoint bool
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		ProductName:        getenv("APP_PRODUCT_NAME", "SigeoJoiner"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		AdminUser:          getenv("APP_ADMIN_USER", "admin"),
		AdminPassword:      getenv("APP_ADMIN_PASSWORD", "changeme"),
		AdminIDs:           splitList(os.Getenv("APP_ADMIN_IDS")),
		BotToken:           os.Getenv("APP_BOT_TOKEN"),
		KeyPrefix:          getenv("APP_KEY_PREFIX", "SIEO"),
		MaxGenerate:        getint("APP_MAX_GENERATE", 50),
		PublicURL:          strings.TrimRight(getenv("APP_PUBLIC_URL", "http://localhost:8080"), "/"),
		PayloadDir:         getenv("APP_PAYLOAD_DIR", "."),
		PayloadID:          getenv("APP_PAYLOAD_ID", "encrypted_script.lua"),
		FingerprintSource:  getenv("APP_FINGERPRINT_SOURCE", FingerprintFromHost),
		AuditRetentionDays: getint("APP_AUDIT_RETENTION_DAYS", 30),
		KeyRetentionDays:   getint("APP_KEY_RETENTION_DAYS", 0),
		SweepInterval:      time.Hour,
		AuthRate:           5,
		AuthBurst:          getint("APP_AUTH_BURST", 10),
		EnableTestEndpoint: getenv("APP_ENABLE_TEST_ENDPOINT", "false") == "true",
	}

	if v := os.Getenv("APP_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("APP_AUTH_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
			cfg.AuthRate = r
		}
	}
	if cfg.FingerprintSource != FingerprintFromRemote {
		cfg.FingerprintSource = FingerprintFromHost
	}

	return cfg
}

// IsAdminID reports whether id may run admin chat commands.
func (c *Config) IsAdminID(id string) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getint returns def unless key holds a non-negative integer.
func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
