package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string
	AppEnv  string

	// Public URL of this service, used to build workflow callback URLs.
	PublicBaseURL string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Redis (demo limiter). Empty means the Postgres fallback is used.
	RedisURL string

	// NATS (research status events). Empty disables publishing.
	NatsURL string

	// SEI chain
	SEIRPCURLs        []string
	SEIChainID        int64
	SEITreasury       string
	SEIReceiptTimeout time.Duration
	SEIReceiptPoll    time.Duration

	// Workflow engine (n8n)
	WorkflowWebhookURL     string
	WorkflowCallbackSecret string
	WorkflowCallbackTTL    time.Duration
	WorkflowWorkerPoolSize int
	WorkflowBufferSize     int
	WorkflowTimeoutSeconds int

	// Object storage (S3 compatible, e.g. Supabase Storage)
	StorageBucket    string
	StorageEndpoint  string
	StorageRegion    string
	StorageAccessKey string
	StorageSecretKey string
	StoragePublicURL string

	// Mail
	MailFrom string

	// Stripe Configuration
	StripeSecretKey     string
	StripeWebhookSecret string

	// Demo mode
	DemoDailyLimit int
	DemoWindow     time.Duration

	// Research
	ResearchStaleAfter    time.Duration
	ResearchExpirySpec    string
	ResearchExpiryEnabled bool

	// Per-IP throttle
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Server
	ServerShutdownTimeoutSeconds int
	TrustedProxies               []string

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	Pricing Pricing `yaml:"pricing"`
}

// Pricing holds the credit economics loaded from the config file.
type Pricing struct {
	ResearchCosts  map[string]int  `yaml:"research_costs"`
	CreditsPerSEI  int64           `yaml:"credits_per_sei"`
	CreditPackages []CreditPackage `yaml:"credit_packages"`
}

type CreditPackage struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Credits       int64  `yaml:"credits" json:"credits"`
	SEIAmount     string `yaml:"sei_amount" json:"sei_amount"`
	PriceUSDCents int64  `yaml:"price_usd_cents" json:"price_usd_cents"`
	StripePriceID string `yaml:"stripe_price_id" json:"-"`
}

// Package returns the credit package with the given id.
func (p Pricing) Package(id string) (CreditPackage, bool) {
	for _, pkg := range p.CreditPackages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return CreditPackage{}, false
}

// DefaultPricing mirrors the research cost table the frontend has always used.
func DefaultPricing() Pricing {
	return Pricing{
		ResearchCosts: map[string]int{
			"simple": 5,
			"full":   10,
			"max":    20,
		},
		CreditsPerSEI: 10,
		CreditPackages: []CreditPackage{
			{ID: "starter", Name: "Starter", Credits: 50, SEIAmount: "5", PriceUSDCents: 500},
			{ID: "researcher", Name: "Researcher", Credits: 120, SEIAmount: "12", PriceUSDCents: 1000},
			{ID: "lab", Name: "Lab", Credits: 300, SEIAmount: "30", PriceUSDCents: 2500},
		},
	}
}

// Load reads configuration from the environment (and .env if present) and the
// optional YAML config file.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		GinMode:       getEnvOrDefault("GIN_MODE", "release"),
		AppEnv:        getEnvOrDefault("APP_ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		// Database
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", "postgres://localhost/reseich?sslmode=disable"),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 15),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		RedisURL: getEnvOrDefault("REDIS_URL", ""),
		NatsURL:  getEnvOrDefault("NATS_URL", ""),

		// SEI (EVM RPC, pacific-1 mainnet by default)
		SEIRPCURLs:        getEnvAsList("SEI_RPC_URLS", []string{"https://evm-rpc.sei-apis.com"}),
		SEIChainID:        getEnvAsInt64("SEI_CHAIN_ID", 1329),
		SEITreasury:       strings.ToLower(getEnvOrDefault("SEI_TREASURY_ADDRESS", "")),
		SEIReceiptTimeout: getEnvAsDuration("SEI_RECEIPT_TIMEOUT", 60*time.Second),
		SEIReceiptPoll:    getEnvAsDuration("SEI_RECEIPT_POLL_INTERVAL", 2*time.Second),

		// Workflow engine
		WorkflowWebhookURL:     getEnvOrDefault("N8N_WEBHOOK_URL", ""),
		WorkflowCallbackSecret: strings.TrimSpace(getEnvOrDefault("WORKFLOW_CALLBACK_SECRET", "")),
		WorkflowCallbackTTL:    getEnvAsDuration("WORKFLOW_CALLBACK_TTL", 72*time.Hour),
		WorkflowWorkerPoolSize: getEnvAsInt("WORKFLOW_WORKER_POOL_SIZE", 4),
		WorkflowBufferSize:     getEnvAsInt("WORKFLOW_BUFFER_SIZE", 500),
		WorkflowTimeoutSeconds: getEnvAsInt("WORKFLOW_TIMEOUT_SECONDS", 30),

		// Object storage
		StorageBucket:    getEnvOrDefault("STORAGE_BUCKET", "research-files"),
		StorageEndpoint:  getEnvOrDefault("STORAGE_ENDPOINT", ""),
		StorageRegion:    getEnvOrDefault("STORAGE_REGION", "us-east-1"),
		StorageAccessKey: getEnvOrDefault("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnvOrDefault("STORAGE_SECRET_KEY", ""),
		StoragePublicURL: strings.TrimRight(getEnvOrDefault("STORAGE_PUBLIC_URL", ""), "/"),

		MailFrom: getEnvOrDefault("MAIL_FROM", "research@reseich.xyz"),

		// Stripe (trim whitespace to avoid common config errors)
		StripeSecretKey:     strings.TrimSpace(getEnvOrDefault("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(getEnvOrDefault("STRIPE_WEBHOOK_SECRET", "")),

		DemoDailyLimit: getEnvAsInt("DEMO_DAILY_LIMIT", 1),
		DemoWindow:     getEnvAsDuration("DEMO_WINDOW", 24*time.Hour),

		ResearchStaleAfter:    getEnvAsDuration("RESEARCH_STALE_AFTER", 6*time.Hour),
		ResearchExpirySpec:    getEnvOrDefault("RESEARCH_EXPIRY_SCHEDULE", "@every 15m"),
		ResearchExpiryEnabled: getEnvOrDefault("RESEARCH_EXPIRY_ENABLED", "true") == "true",

		RateLimitEnabled: getEnvOrDefault("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:   getEnvAsInt("RATE_LIMIT_BURST", 20),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),
		TrustedProxies:               getEnvAsList("TRUSTED_PROXIES", nil),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		Pricing: DefaultPricing(),
	}

	// Pricing can be overridden from the config file; everything else comes from the environment.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %v not found, using default pricing", configFilePath)
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer configFile.Close()
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.WorkflowWebhookURL == "" {
		log.Println("Warning: N8N_WEBHOOK_URL is missing. Research, chat and email dispatch will be skipped.")
	}

	if cfg.SEITreasury == "" {
		log.Println("Warning: SEI_TREASURY_ADDRESS is missing. Credit purchases will not check the recipient.")
	}

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		log.Println("Warning: Stripe credentials are missing. Card purchases are disabled.")
	}

	return cfg, nil
}

// Validate checks settings that the service cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL not set")
	}
	if c.WorkflowCallbackSecret == "" {
		return errors.New("WORKFLOW_CALLBACK_SECRET not set")
	}
	for _, depth := range []string{"simple", "full", "max"} {
		if cost, ok := c.Pricing.ResearchCosts[depth]; !ok || cost <= 0 {
			return fmt.Errorf("pricing.research_costs.%s must be positive", depth)
		}
	}
	if c.Pricing.CreditsPerSEI <= 0 {
		return errors.New("pricing.credits_per_sei must be positive")
	}
	if c.DemoDailyLimit < 0 {
		return errors.New("DEMO_DAILY_LIMIT must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int64, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as float, using default %f: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile decodes the YAML config file into config. Keys absent from
// the file keep their current values.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
