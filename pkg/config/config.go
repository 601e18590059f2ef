// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string          `mapstructure:"environment"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	GRPC        GRPCConfig      `mapstructure:"grpc"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Logger      LoggerConfig    `mapstructure:"logger"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	PriceFeed   PriceFeedConfig `mapstructure:"price_feed"`
	Wallet      WalletConfig    `mapstructure:"wallet"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// GRPCConfig gRPC 服务配置（健康检查与反射）
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：目前仅支持 mysql
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int  `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout  int `mapstructure:"conn_timeout"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	// 事件主题前缀，实际主题为 <prefix>.option.minted 等
	TopicPrefix  string `mapstructure:"topic_prefix"`
	MaxRetries   int    `mapstructure:"max_retries"`
	RetryBackoff int    `mapstructure:"retry_backoff"` // 毫秒
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// redis 或 local；local 仅在单实例部署下有效
	Backend string `mapstructure:"backend"`
	QPS     int    `mapstructure:"qps"`
	Burst   int    `mapstructure:"burst"`
}

// PriceFeedConfig 行情源配置
type PriceFeedConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// 资产代码到 CoinGecko id 的映射，例如 ADA -> cardano
	AssetIDs map[string]string `mapstructure:"asset_ids"`
	// 现价轮询间隔
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// 日线刷新间隔
	ChartInterval time.Duration `mapstructure:"chart_interval"`
	HistoryDays   int           `mapstructure:"history_days"`
	// 行情源不可用且无缓存时的兜底报价
	FallbackPrice     string        `mapstructure:"fallback_price"`
	FallbackChange24h string        `mapstructure:"fallback_change_24h"`
	// 报价超过该时长标记为陈旧
	StaleAfter time.Duration `mapstructure:"stale_after"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// WalletConfig 钱包桥配置
type WalletConfig struct {
	BridgeURL string        `mapstructure:"bridge_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖；文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// APP_DATABASE_DSN 覆盖 database.dsn
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.PriceFeed.PollInterval <= 0 {
		return fmt.Errorf("price_feed.poll_interval must be positive")
	}
	if c.PriceFeed.ChartInterval <= 0 {
		return fmt.Errorf("price_feed.chart_interval must be positive")
	}
	if price, err := decimal.NewFromString(c.PriceFeed.FallbackPrice); err != nil || !price.IsPositive() {
		return fmt.Errorf("price_feed.fallback_price must be a positive decimal, got %q", c.PriceFeed.FallbackPrice)
	}
	if len(c.PriceFeed.AssetIDs) == 0 {
		return fmt.Errorf("price_feed.asset_ids must not be empty")
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		return fmt.Errorf("rate_limit.qps must be positive when enabled")
	}
	switch c.RateLimit.Backend {
	case "", "redis", "local":
	default:
		return fmt.Errorf("rate_limit.backend %q is not supported", c.RateLimit.Backend)
	}
	return nil
}

// Assets 已配置的标的资产代码（大写）
func (p PriceFeedConfig) Assets() []string {
	out := make([]string, 0, len(p.AssetIDs))
	for asset := range p.AssetIDs {
		out = append(out, strings.ToUpper(asset))
	}
	return out
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "optionsdesk")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "root:password@tcp(127.0.0.1:3306)/optionsdesk?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "optionsdesk")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/optionsdesk.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "redis")
	v.SetDefault("rate_limit.qps", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("price_feed.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price_feed.asset_ids", map[string]string{
		"ADA": "cardano",
		"BTC": "bitcoin",
		"ETH": "ethereum",
	})
	v.SetDefault("price_feed.poll_interval", 30*time.Second)
	v.SetDefault("price_feed.chart_interval", 5*time.Minute)
	v.SetDefault("price_feed.history_days", 7)
	v.SetDefault("price_feed.fallback_price", "0.45")
	v.SetDefault("price_feed.fallback_change_24h", "2.5")
	v.SetDefault("price_feed.stale_after", 2*time.Minute)
	v.SetDefault("price_feed.timeout", 10*time.Second)
	v.SetDefault("price_feed.cache_ttl", 24*time.Hour)

	v.SetDefault("wallet.bridge_url", "http://127.0.0.1:8090")
	v.SetDefault("wallet.timeout", 30*time.Second)
}
