package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/laundry-orders/internal/domain/member"
	"github.com/xenking/laundry-orders/internal/domain/pricing"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("LAUNDRY_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/laundry")
	t.Setenv("PORT", "9090")
	t.Setenv("LAUNDRY_GATEWAY_SERVER_KEY", "server-key")

	cfg, err := loadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/laundry", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Order.PaymentTTL)
	assert.Equal(t, "laundry.order.events", cfg.Kafka.Topic)
	assert.Equal(t, "Asia/Jakarta", cfg.Location().String())

	gw := cfg.PaymentGateway()
	assert.Equal(t, "server-key", gw.ServerKey)
	assert.Equal(t, 10*time.Second, gw.Timeout)
	assert.Equal(t, cfg.Location(), gw.Location)
}

func TestLoadConfig_RequiresServerKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/laundry")
	t.Setenv("LAUNDRY_GATEWAY_SERVER_KEY", "")

	_, err := loadConfig(true)
	require.Error(t, err)
}

func TestPricingConfig(t *testing.T) {
	c := PricingConfig{ExpressFee: 5000, SuperExpressFee: 10000, SilverRate: 5, GoldRate: 10, PlatinumRate: 12.5}

	fees := c.FeeSchedule()
	assert.True(t, fees.Fee(pricing.ServiceSuperExpress).Equal(decimal.NewFromInt(10000)))
	assert.True(t, c.Rates()[member.LevelPlatinum].Equal(decimal.RequireFromString("12.5")))
}
