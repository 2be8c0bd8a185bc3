package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	OTLPEndpoint       string
	OTLPProtocol       string
	TracingEnabled     bool
	TracingSampleRatio float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// TokenSecret signs API credentials. Empty means issuance is disabled.
	TokenSecret string

	// SnowflakeNode must be unique per running instance.
	SnowflakeNode int64

	InvitationTTL time.Duration

	Authorization AuthorizationConfig
	RateLimit     RateLimitConfig
}

type AuthorizationConfig struct {
	// PersistPolicies stores the casbin action policy through the gorm adapter.
	PersistPolicies bool
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VerifyRate  float64
	VerifyBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:            getenv("APP_SERVICE", "orgkeys"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:          strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OTLPEndpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:       otlpProtocol(),
		TracingEnabled:     getenvBool("OTEL_ENABLED", false),
		TracingSampleRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "orgkeys"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBPath:             getenv("DATABASE_PATH", "orgkeys.db"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:  getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		TokenSecret:        strings.TrimSpace(getenv("API_TOKEN_SECRET", "")),
		SnowflakeNode:      int64(getenvInt("SNOWFLAKE_NODE", 1)),
		InvitationTTL:      getenvDuration("INVITATION_TTL", 7*24*time.Hour),
		Authorization: AuthorizationConfig{
			PersistPolicies: getenvBool("AUTHZ_PERSIST_POLICIES", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
			VerifyRate:    getenvFloat("RATE_LIMIT_VERIFY_RATE", 5),
			VerifyBurst:   getenvInt("RATE_LIMIT_VERIFY_BURST", 20),
		},
	}
}

// otlpProtocol prefers the traces-specific variable, as the OTLP exporters do.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	return strings.ToLower(strings.TrimSpace(protocol))
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
