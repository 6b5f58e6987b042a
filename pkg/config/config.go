package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials is fatal at startup when live trading is requested.
var ErrMissingCredentials = errors.New("BROKER_API_KEY or BROKER_SECRET_KEY not set")

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port string

	// Broker credentials, shared by simulation and live sessions.
	BrokerAPIKey    string
	BrokerSecretKey string
	Simulation      bool

	// Quote feed
	QuoteFeedURL string
	UseMockFeed  bool

	// Execution queue
	QueueWALDir         string
	QueueSize           int
	RequestMaxRetries   int
	RequestRetryDelay   time.Duration
	HealthCheckInterval time.Duration
	SessionStaleAfter   time.Duration

	// Fill verification
	OrderStatusCheckDelay    time.Duration
	OrderStatusCheckInterval time.Duration
	OrderStatusMaxAttempts   int

	// Quote storage
	QuoteStorageEnabled    bool
	QuoteStorageBufferSize int
	QuoteStorageFlushEvery time.Duration

	// Strategy
	StrategyConfigPath   string
	StatePersistInterval time.Duration

	DBPath string
}

// Load reads environment variables (optionally from .env) into Config.
func Load() (*Config, error) {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		BrokerAPIKey:             os.Getenv("BROKER_API_KEY"),
		BrokerSecretKey:          os.Getenv("BROKER_SECRET_KEY"),
		Simulation:               getEnvBool("SIMULATION", true),
		QuoteFeedURL:             getEnv("QUOTE_FEED_URL", ""),
		UseMockFeed:              getEnvBool("USE_MOCK_FEED", true),
		QueueWALDir:              getEnv("QUEUE_WAL_DIR", "./data/queue"),
		QueueSize:                getEnvInt("QUEUE_SIZE", 256),
		RequestMaxRetries:        getEnvInt("REQUEST_MAX_RETRIES", 3),
		RequestRetryDelay:        getEnvDuration("REQUEST_RETRY_DELAY", time.Second),
		HealthCheckInterval:      getEnvDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute),
		SessionStaleAfter:        getEnvDuration("SESSION_STALE_AFTER", 10*time.Minute),
		OrderStatusCheckDelay:    getEnvDuration("ORDER_STATUS_CHECK_DELAY", 2*time.Second),
		OrderStatusCheckInterval: getEnvDuration("ORDER_STATUS_CHECK_INTERVAL", 5*time.Second),
		OrderStatusMaxAttempts:   getEnvInt("ORDER_STATUS_MAX_ATTEMPTS", 120),
		QuoteStorageEnabled:      getEnvBool("QUOTE_STORAGE_ENABLED", true),
		QuoteStorageBufferSize:   getEnvInt("QUOTE_STORAGE_BUFFER_SIZE", 100),
		QuoteStorageFlushEvery:   getEnvDuration("QUOTE_STORAGE_FLUSH_INTERVAL", 5*time.Second),
		StrategyConfigPath:       getEnv("STRATEGY_CONFIG_PATH", ""),
		StatePersistInterval:     getEnvDuration("STATE_PERSIST_INTERVAL", 10*time.Second),
		DBPath:                   getEnv("DB_PATH", "./data/futures.db"),
	}

	return cfg, nil
}

// ValidateCredentials checks that broker credentials are present. Mock-feed
// simulation runs tolerate their absence; everything else refuses to start.
func (c *Config) ValidateCredentials() error {
	if c.BrokerAPIKey == "" || c.BrokerSecretKey == "" {
		if c.Simulation && c.UseMockFeed {
			return nil
		}
		return ErrMissingCredentials
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(value, "true") || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers in .env files are read as seconds.
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}
