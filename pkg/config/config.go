package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	NATS          NATSConfig
	Storage       StorageConfig
	Auth          AuthConfig
	Tracing       TracingConfig
	Investigation InvestigationConfig
	Simulator     SimulatorConfig
	Retention     RetentionConfig
	RateLimit     RateLimitConfig
	Resilience    ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	ServiceName    string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	CORSOrigins    string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	CaseTTL        int // seconds
	StatsTTL       int // seconds
	IdempotencyTTL int // seconds a replayable ingest response is kept
}

// NATSConfig holds the event bus connection settings
type NATSConfig struct {
	Enabled    bool
	URL        string
	StreamName string
}

// StorageConfig describes where rendered case reports are written
type StorageConfig struct {
	Enabled   bool
	Bucket    string
	Region    string
	Endpoint  string // optional, for S3-compatible stores
	Prefix    string
	AccessKey string
	SecretKey string
}

// AuthConfig holds JWT settings for the analyst API
type AuthConfig struct {
	JWTSecret string
	Disabled  bool
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
}

// InvestigationConfig bounds the history windows read for each investigated transaction
type InvestigationConfig struct {
	RecentAccountLimit int
	ReuseLimit         int
}

// SimulatorConfig controls the built-in transaction generator
type SimulatorConfig struct {
	Enabled   bool
	TPS       float64
	SeedDays  int
	SeedTotal int
	FlagPath  string
}

// RetentionConfig bounds how long transactions and cases are kept
type RetentionConfig struct {
	Days          int
	IntervalHours int
}

// RateLimitConfig throttles transaction ingest per caller
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	IngestLimit   int
	IngestBurst   int
	RedisPrefix   string
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures breaker tuning shared by outbound dependencies
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
}

const (
	DefaultRecentAccountLimit = 120
	DefaultReuseLimit         = 200
	MaxHistoryLimit           = 5000
)

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ServiceName:    serviceName,
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 30),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "fraud"),
			Password:       getEnv("DB_PASSWORD", "fraud"),
			DBName:         getEnv("DB_NAME", "fraudsim"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://db/migrations"),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			CaseTTL:        getEnvAsInt("REDIS_CASE_TTL", 3600),
			StatsTTL:       getEnvAsInt("REDIS_STATS_TTL", 10),
			IdempotencyTTL: getEnvAsInt("REDIS_IDEMPOTENCY_TTL", 86400),
		},
		NATS: NATSConfig{
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://127.0.0.1:4222"),
			StreamName: getEnv("NATS_STREAM", "FRAUD"),
		},
		Storage: StorageConfig{
			Enabled:   getEnvAsBool("REPORT_STORAGE_ENABLED", false),
			Bucket:    getEnv("REPORT_BUCKET", "fraud-case-files"),
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Endpoint:  getEnv("REPORT_S3_ENDPOINT", ""),
			Prefix:    getEnv("REPORT_PREFIX", "cases"),
			AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
			Disabled:  getEnvAsBool("AUTH_DISABLED", false),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_SAMPLE_RATE", 1.0),
		},
		Investigation: InvestigationConfig{
			RecentAccountLimit: getEnvAsInt("RECENT_ACCOUNT_LIMIT", DefaultRecentAccountLimit),
			ReuseLimit:         getEnvAsInt("REUSE_LIMIT", DefaultReuseLimit),
		},
		Simulator: SimulatorConfig{
			Enabled:   getEnvAsBool("SIM_ENABLED", true),
			TPS:       getEnvAsFloat("SIM_TPS", 2.0),
			SeedDays:  getEnvAsInt("SIM_SEED_DAYS", 7),
			SeedTotal: getEnvAsInt("SIM_SEED_TOTAL", 12000),
			FlagPath:  getEnv("SIM_SEED_FLAG", "seeded.flag"),
		},
		Retention: RetentionConfig{
			Days:          getEnvAsInt("RETENTION_DAYS", 7),
			IntervalHours: getEnvAsInt("RETENTION_INTERVAL_HOURS", 6),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			IngestLimit:   getEnvAsInt("RATE_LIMIT_INGEST_LIMIT", 600),
			IngestBurst:   getEnvAsInt("RATE_LIMIT_INGEST_BURST", 100),
			RedisPrefix:   getEnv("RATE_LIMIT_REDIS_PREFIX", "rate-limit"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}
	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}
	if cfg.Retention.IntervalHours <= 0 {
		cfg.Retention.IntervalHours = 6
	}

	return cfg, nil
}

func (c *Config) validate() error {
	inv := c.Investigation
	if inv.RecentAccountLimit <= 0 || inv.RecentAccountLimit > MaxHistoryLimit {
		return fmt.Errorf("RECENT_ACCOUNT_LIMIT must be between 1 and %d, got %d", MaxHistoryLimit, inv.RecentAccountLimit)
	}
	if inv.ReuseLimit <= 0 || inv.ReuseLimit > MaxHistoryLimit {
		return fmt.Errorf("REUSE_LIMIT must be between 1 and %d, got %d", MaxHistoryLimit, inv.ReuseLimit)
	}
	if c.Simulator.TPS <= 0 {
		return fmt.Errorf("SIM_TPS must be positive, got %v", c.Simulator.TPS)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("RETENTION_DAYS must not be negative, got %d", c.Retention.Days)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0,1], got %v", c.Tracing.SampleRate)
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection string in URL form, as golang-migrate expects
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Interval returns how often the retention job runs
func (c RetentionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Window returns the refill window of the ingest bucket
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
