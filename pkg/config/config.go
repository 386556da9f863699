package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Pricing  PricingConfig
	Checkout CheckoutConfig
	Catalog  CatalogConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.ensureDestination(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithDotenv reads a local .env file (when present) before parsing the
// environment. A missing file is not an error.
func LoadWithDotenv() (*Config, error) {
	_ = godotenv.Load()
	return Load()
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type AuthConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// AccessTokenTTL returns the configured session token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(a.ExpirationMinutes) * time.Minute
}

type PricingConfig struct {
	FreeDeliveryOver decimal.Decimal `envconfig:"STOREFRONT_FREE_DELIVERY_OVER" default:"1500"`
	DeliveryFee      decimal.Decimal `envconfig:"STOREFRONT_DELIVERY_FEE" default:"99"`
}

type CheckoutConfig struct {
	WhatsAppNumber string `envconfig:"STOREFRONT_WHATSAPP_NUMBER"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"STOREFRONT_CATALOG_CACHE_TTL" default:"10m"`
}

func (c *CheckoutConfig) ensureDestination() error {
	trimmed := strings.TrimSpace(c.WhatsAppNumber)
	if trimmed == "" {
		return nil
	}
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			return nil
		}
	}
	return fmt.Errorf("%s must contain at least one digit", EnvWhatsAppNumber)
}
