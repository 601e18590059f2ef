package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "optionsdesk", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.PriceFeed.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.PriceFeed.ChartInterval)
	assert.Equal(t, "0.45", cfg.PriceFeed.FallbackPrice)
	assert.Equal(t, 2*time.Minute, cfg.PriceFeed.StaleAfter)
	assert.Equal(t, "cardano", cfg.PriceFeed.AssetIDs["ada"])
	assert.ElementsMatch(t, []string{"ADA", "BTC", "ETH"}, cfg.PriceFeed.Assets())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optionsdesk.toml")
	content := `
service_name = "desk-test"
environment = "staging"

[http]
port = 18080

[price_feed]
poll_interval = "10s"
fallback_price = "0.50"

[price_feed.asset_ids]
ADA = "cardano"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("APP_DATABASE_DSN", "user:pw@tcp(db:3306)/desk?parseTime=True")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "desk-test", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 18080, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.PriceFeed.PollInterval)
	assert.Equal(t, "0.50", cfg.PriceFeed.FallbackPrice)
	assert.Equal(t, "user:pw@tcp(db:3306)/desk?parseTime=True", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServiceName: "optionsdesk",
			HTTP:        HTTPConfig{Port: 8080},
			GRPC:        GRPCConfig{Port: 50051},
			Database:    DatabaseConfig{Driver: "mysql", DSN: "dsn"},
			PriceFeed: PriceFeedConfig{
				PollInterval:  time.Second,
				ChartInterval: time.Minute,
				AssetIDs:      map[string]string{"ADA": "cardano"},
				FallbackPrice: "0.45",
			},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dev", cfg.Environment)

	tests := map[string]func(c *Config){
		"missing name":       func(c *Config) { c.ServiceName = "" },
		"bad http port":      func(c *Config) { c.HTTP.Port = 70000 },
		"bad grpc port":      func(c *Config) { c.GRPC.Port = 0 },
		"postgres driver":    func(c *Config) { c.Database.Driver = "postgres" },
		"missing dsn":        func(c *Config) { c.Database.DSN = "" },
		"zero poll interval": func(c *Config) { c.PriceFeed.PollInterval = 0 },
		"no assets":          func(c *Config) { c.PriceFeed.AssetIDs = nil },
		"zero fallback":      func(c *Config) { c.PriceFeed.FallbackPrice = "0" },
		"rate limit no qps":  func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true} },
		"unknown limiter":    func(c *Config) { c.RateLimit.Backend = "memcached" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
