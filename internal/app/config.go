package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for sessions, carts and rate limits (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	AMQPURL     string `default:"" usage:"RabbitMQ URL for order events; empty disables publishing" flag:"amqp-url"`
	BcryptCost  int    `default:"12" usage:"bcrypt cost for password hashes" flag:"bcrypt-cost"`
	Pricing     PricingConfig
	Orders      OrdersConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// PricingConfig holds the tax and shipping rules as decimal strings.
type PricingConfig struct {
	TaxRate          string `default:"10"     usage:"Tax rate in percent"`
	ShippingFee      string `default:"15.00"  usage:"Flat shipping fee"`
	FreeShippingOver string `default:"100.00" usage:"Subtotal above which shipping is free"`
}

// Policy parses the configured amounts.
func (c PricingConfig) Policy() (pricing.Policy, error) {
	var (
		p   pricing.Policy
		err error
	)
	if p.TaxRate, err = decimal.NewFromString(c.TaxRate); err != nil {
		return p, errors.Wrap(err, "parse tax rate")
	}
	if p.ShippingFee, err = decimal.NewFromString(c.ShippingFee); err != nil {
		return p, errors.Wrap(err, "parse shipping fee")
	}
	if p.FreeShippingOver, err = decimal.NewFromString(c.FreeShippingOver); err != nil {
		return p, errors.Wrap(err, "parse free shipping threshold")
	}
	if p.TaxRate.IsNegative() || p.ShippingFee.IsNegative() || p.FreeShippingOver.IsNegative() {
		return p, errors.New("pricing amounts must not be negative")
	}
	return p, nil
}

// OrdersConfig controls order lifecycle decisions.
type OrdersConfig struct {
	RestockOnCancel       bool `default:"false" usage:"Return item quantities to stock when an order is cancelled"`
	PermissiveAdminStatus bool `default:"false" usage:"Let admins set any status regardless of the current one"`
}

// SessionConfig controls browser sessions.
type SessionConfig struct {
	IdleTimeout  time.Duration `default:"60m"          usage:"Destroy sessions idle for this long"`
	RotateAfter  time.Duration `default:"30m"          usage:"Issue a new session id after this long"`
	CookieName   string        `default:"shop_session" usage:"Session cookie name"`
	SecureCookie bool          `default:"false"        usage:"Mark the session cookie Secure"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.RedisURL == "":
		return errors.New("redis URL is required: set SHOP_REDIS_URL or REDIS_URL")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	if _, err := c.Pricing.Policy(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL, REDIS_URL and PORT.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
