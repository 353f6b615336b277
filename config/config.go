package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment.
type Config struct {
	Env         string
	Port        string
	CartAPIPort string

	APIBaseURL     string
	RequestTimeout time.Duration

	DebounceDelay time.Duration
	VisitorTTL    time.Duration

	SessionAuthKey string
	SessionEncKey  string
	CookieSecure   bool
	SessionFile    string

	JWTSecret     string
	JWTSecretName string

	CartStore          string
	RedisURL           string
	DynamoCartTable    string
	DynamoProductTable string
	CartTTL            time.Duration

	CartEventsTopicARN string
	CloudWatchEnabled  bool

	AllowedOrigins     string
	RateLimitPerMinute int
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8090"),
		CartAPIPort: getEnv("CARTAPI_PORT", "8086"),

		APIBaseURL:     strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8086"), "/"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),

		DebounceDelay: getDuration("CART_DEBOUNCE_DELAY", 500*time.Millisecond),
		VisitorTTL:    getDuration("VISITOR_TTL", 30*time.Minute),

		SessionAuthKey: getEnv("SESSION_AUTH_KEY", ""),
		SessionEncKey:  getEnv("SESSION_ENC_KEY", ""),
		CookieSecure:   getBool("COOKIE_SECURE", false),
		SessionFile:    getEnv("SESSION_FILE", DefaultSessionFile()),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTSecretName: getEnv("JWT_SECRET_NAME", ""),

		CartStore:          getEnv("CART_STORE", "redis"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		DynamoCartTable:    getEnv("DYNAMO_CART_TABLE", "carts"),
		DynamoProductTable: getEnv("DYNAMO_PRODUCT_TABLE", ""),
		CartTTL:            getDuration("CART_TTL", 7*24*time.Hour),

		CartEventsTopicARN: getEnv("CART_EVENTS_TOPIC_ARN", ""),
		CloudWatchEnabled:  getBool("CLOUDWATCH_ENABLED", false),

		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", ""),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		log.Printf("invalid duration for %s=%q, using %s", key, val, defaultVal)
		return defaultVal
	}
	return d
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// DefaultSessionFile is where the CLI keeps the device session id.
func DefaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "scarlet", "session")
}
