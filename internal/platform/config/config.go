package config

import (
	"log"
	"strings"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers selectable with STORAGE_DRIVER.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string `mapstructure:"PGSQL_URL"`
	Port          string `mapstructure:"PORT"`
	IsProduction  bool   `mapstructure:"IS_PRODUCTION"`
	EnableDBCheck bool   `mapstructure:"ENABLE_DB_CHECK"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	// Balance cache; empty RedisURL disables it.
	RedisURL        string        `mapstructure:"REDIS_URL"`
	BalanceCacheTTL time.Duration `mapstructure:"BALANCE_CACHE_TTL"`

	// Ledger events; empty KafkaBrokers disables publishing.
	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	LedgerMaxRetries           uint64        `mapstructure:"LEDGER_MAX_RETRIES"`
	LedgerRetryInitialInterval time.Duration `mapstructure:"LEDGER_RETRY_INITIAL_INTERVAL"`

	// RateLimit uses the ulule/limiter formatted rate, e.g. "100-M".
	RateLimit          string   `mapstructure:"RATE_LIMIT"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	SummaryWindowDays int `mapstructure:"SUMMARY_WINDOW_DAYS"`

	CostOverrides map[domain.OperationKind]decimal.Decimal
}

// costKeys maps catalog override variables to the kind they price.
var costKeys = map[string]domain.OperationKind{
	"COST_BLOG_GENERATION":  domain.KindBlogGeneration,
	"COST_IMAGE_GENERATION": domain.KindImageGeneration,
	"COST_IMAGE_EDIT":       domain.KindImageEdit,
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("STORAGE_DRIVER", StoragePostgres)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "credit-ledger")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("BALANCE_CACHE_TTL", "5m")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "credit-ledger.transactions")
	viper.SetDefault("LEDGER_MAX_RETRIES", 3)
	viper.SetDefault("LEDGER_RETRY_INITIAL_INTERVAL", "25ms")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("SUMMARY_WINDOW_DAYS", 30)

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")
	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.KafkaTopic = viper.GetString("KAFKA_TOPIC")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	cfg.StorageDriver = strings.ToLower(viper.GetString("STORAGE_DRIVER"))
	if cfg.StorageDriver != StoragePostgres && cfg.StorageDriver != StorageMemory {
		log.Printf("Warning: unknown STORAGE_DRIVER ('%s'). Defaulting to %s.\n", cfg.StorageDriver, StoragePostgres)
		cfg.StorageDriver = StoragePostgres
	}

	if cfg.DatabaseURL == "" && cfg.StorageDriver == StoragePostgres {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.BalanceCacheTTL = durationOrDefault("BALANCE_CACHE_TTL", 5*time.Minute)
	cfg.LedgerRetryInitialInterval = durationOrDefault("LEDGER_RETRY_INITIAL_INTERVAL", 25*time.Millisecond)

	cfg.LedgerMaxRetries = uint64(viper.GetInt("LEDGER_MAX_RETRIES"))

	cfg.SummaryWindowDays = viper.GetInt("SUMMARY_WINDOW_DAYS")
	if cfg.SummaryWindowDays <= 0 {
		cfg.SummaryWindowDays = 30
	}

	cfg.KafkaBrokers = splitList(viper.GetString("KAFKA_BROKERS"))
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	cfg.CostOverrides = map[domain.OperationKind]decimal.Decimal{}
	for key, kind := range costKeys {
		raw := strings.TrimSpace(viper.GetString(key))
		if raw == "" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			log.Printf("Warning: Invalid value for %s ('%s'). Keeping the default price.\n", key, raw)
			continue
		}
		cfg.CostOverrides[kind] = price
	}

	return cfg, nil
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback.String())
		}
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
