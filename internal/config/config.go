package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	LogLevel       string
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Aggregation
	AggregationInterval time.Duration
	WindowSpan          time.Duration
	KeepWeeks           int
	Timezone            string
	Location            *time.Location

	// Feed parsing
	OutboundMarker   string
	AuthorizedAgents []string
	Denylist         []string
	AgentsFile       string
	FeedFile         string // replayed into the window on startup

	// Feed simulator control API, proxied by the admin routes
	SimURL string

	// Auth
	SkipAuth           bool
	OIDCIssuer         string
	VerifyJWTSignature bool
	Env                string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Timezone:           getEnv("TIMEZONE", "Europe/Paris"),
		OutboundMarker:     getEnv("OUTBOUND_MARKER", "Ext"),
		AgentsFile:         os.Getenv("AGENTS_FILE"),
		SimURL:             os.Getenv("CDRSIM_URL"),
		FeedFile:           os.Getenv("FEED_FILE"),
		SkipAuth:           os.Getenv("SKIP_AUTH") == "true",
		OIDCIssuer:         os.Getenv("OIDC_ISSUER"),
		VerifyJWTSignature: os.Getenv("VERIFY_JWT_SIGNATURE") == "true",
		Env:                os.Getenv("ENV"),
	}

	// Parse WebSocket timeouts
	wsReadTimeout, err := getEnvInt("WS_READ_TIMEOUT", 60)
	if err != nil {
		return nil, err
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := getEnvInt("WS_WRITE_TIMEOUT", 10)
	if err != nil {
		return nil, err
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 64 * 1024

	interval, err := getEnvInt("AGGREGATION_INTERVAL", 5)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid AGGREGATION_INTERVAL: must be positive")
	}
	config.AggregationInterval = time.Duration(interval) * time.Second

	windowDays, err := getEnvInt("WINDOW_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		return nil, fmt.Errorf("invalid WINDOW_DAYS: must be positive")
	}
	config.WindowSpan = time.Duration(windowDays) * 24 * time.Hour

	config.KeepWeeks, err = getEnvInt("KEEP_WEEKS", 4)
	if err != nil {
		return nil, err
	}

	config.Location, err = time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	config.AuthorizedAgents = splitList(os.Getenv("AUTHORIZED_AGENTS"))
	config.Denylist = append(append([]string{}, agentname.DefaultDenylist...), splitList(os.Getenv("EXTRA_DENYLIST"))...)

	if config.AgentsFile != "" {
		roster, err := LoadRoster(config.AgentsFile)
		if err != nil {
			return nil, err
		}
		config.AuthorizedAgents = append(config.AuthorizedAgents, roster.Agents...)
		config.Denylist = append(config.Denylist, roster.Denylist...)
	}

	config.AuthorizedAgents = normalizeList(config.AuthorizedAgents)
	config.Denylist = normalizeList(config.Denylist)

	return config, nil
}

// VerifySignature reports whether tokens must be checked against the issuer's keys
func (c *Config) VerifySignature() bool {
	if c.Env != "development" && c.Env != "" {
		return true
	}
	return c.VerifyJWTSignature
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// splitList splits a comma separated value, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// normalizeList collapses whitespace and drops case-insensitive duplicates,
// keeping the first-seen spelling and order
func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.Join(strings.Fields(v), " ")
		key := strings.ToLower(v)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
