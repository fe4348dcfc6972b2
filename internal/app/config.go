package app

import (
	"os"
	"time"
	_ "time/tzdata" // Timezone must resolve in minimal images.

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/payment"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (LAUNDRY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (LAUNDRY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timezone    string `default:"Asia/Jakarta" usage:"Zone for calendar-day aggregation and pickup dates"`
	Pricing     PricingConfig
	Order       OrderConfig
	Gateway     GatewayConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Sweep       SweepConfig
	Graceful    GracefulConfig
}

// PricingConfig holds service fees and membership discount rates.
type PricingConfig struct {
	ExpressFee      int64   `default:"5000"  usage:"Surcharge for express service"`
	SuperExpressFee int64   `default:"10000" usage:"Surcharge for super express service"`
	SilverRate      float64 `default:"5"  usage:"Silver member discount percent"`
	GoldRate        float64 `default:"10" usage:"Gold member discount percent"`
	PlatinumRate    float64 `default:"15" usage:"Platinum member discount percent"`
}

// OrderConfig tunes the order lifecycle.
type OrderConfig struct {
	PaymentTTL time.Duration `default:"2h" usage:"How long an online order waits for payment"`
}

// GatewayConfig holds the payment gateway credentials.
type GatewayConfig struct {
	ServerKey       string        `usage:"Gateway server key, also used to verify notifications" flag:"gateway-server-key"`
	ClientKey       string        `usage:"Gateway client key" flag:"gateway-client-key"`
	BaseURL         string        `default:"https://app.sandbox.midtrans.com/snap/v1" usage:"Gateway API base URL"`
	Timeout         time.Duration `default:"10s" usage:"Gateway request timeout"`
	EnabledPayments []string      `usage:"Payment methods offered on the payment page"`
}

// RedisConfig enables the notification redelivery guard when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address (host:port); empty disables the guard"`
	DedupTTL time.Duration `default:"48h" usage:"How long processed notifications are remembered"`
}

// KafkaConfig enables lifecycle event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty disables event publishing"`
	Topic   string   `default:"laundry.order.events" usage:"Topic for order lifecycle events"`
}

// SweepConfig controls the background expiry of unpaid orders.
type SweepConfig struct {
	Interval time.Duration `default:"1m"  usage:"Expiry sweep interval"`
	Batch    int           `default:"100" usage:"Max orders expired per sweep"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: skipFlags,
		EnvPrefix: "LAUNDRY",
		Files:     []string{"config.yaml", "/etc/laundry/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set LAUNDRY_DATABASE_URL or DATABASE_URL")
	}
	if c.Gateway.ServerKey == "" {
		return errors.New("gateway server key is required: set LAUNDRY_GATEWAY_SERVER_KEY")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the LAUNDRY_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Location returns the configured zone. LoadConfig has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeeSchedule builds the service surcharges.
func (c PricingConfig) FeeSchedule() pricing.FeeSchedule {
	return pricing.FeeSchedule{
		Express:      decimal.NewFromInt(c.ExpressFee),
		SuperExpress: decimal.NewFromInt(c.SuperExpressFee),
	}
}

// Rates builds the membership discount table.
func (c PricingConfig) Rates() member.Rates {
	return member.Rates{
		member.LevelSilver:   decimal.NewFromFloat(c.SilverRate),
		member.LevelGold:     decimal.NewFromFloat(c.GoldRate),
		member.LevelPlatinum: decimal.NewFromFloat(c.PlatinumRate),
	}
}

// PaymentGateway builds the gateway settings shared by the outbound client
// and the notification reconciler.
func (c *Config) PaymentGateway() *payment.GatewayConfig {
	return &payment.GatewayConfig{
		ServerKey:       c.Gateway.ServerKey,
		ClientKey:       c.Gateway.ClientKey,
		BaseURL:         c.Gateway.BaseURL,
		Timeout:         c.Gateway.Timeout,
		EnabledPayments: c.Gateway.EnabledPayments,
		Location:        c.Location(),
	}
}
