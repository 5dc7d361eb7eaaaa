package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"SellerGuard/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level          string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format         string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output         string `yaml:"output" default:"stdout"`
		ErrorCollector struct {
			Enabled       bool          `yaml:"enabled"`
			FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
			BufferSize    int           `yaml:"buffer_size" default:"1000"`
		} `yaml:"error_collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Topics       struct {
			Metrics string `yaml:"metrics" default:"seller.metrics"`
			Alerts  string `yaml:"alerts" default:"seller.alerts"`
			Logs    string `yaml:"logs" default:"logging.errors"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"sellerguard-risk"`
			Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"seller.metrics.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sellerguard"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size" default:"10"`
		KeyPrefix string `yaml:"key_prefix" default:"sellerguard"`
	} `yaml:"redis"`
	Marketplace struct {
		BaseURL     string        `yaml:"base_url" default:"https://api.mercadolibre.com" validate:"url"`
		AccessToken string        `yaml:"access_token"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
		OrdersLimit int           `yaml:"orders_limit" default:"100" validate:"gte=1,lte=200"`
	} `yaml:"marketplace"`
	Sync struct {
		Enabled     bool          `yaml:"enabled"`
		Interval    time.Duration `yaml:"interval" default:"15m"`
		Accounts    []string      `yaml:"accounts"`
		Concurrency int           `yaml:"concurrency" default:"4" validate:"gte=1"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"5m"`
		MaxRPS      int           `yaml:"max_rps" default:"5"`
		BufferSize  int           `yaml:"buffer_size" default:"100"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
	} `yaml:"sync"`
	Risk struct {
		DefaultAlertThreshold string        `yaml:"default_alert_threshold" default:"high" validate:"oneof=all medium high critical"`
		EvaluateConcurrency   int           `yaml:"evaluate_concurrency" default:"8" validate:"gte=1"`
		HistoryCacheTTL       time.Duration `yaml:"history_cache_ttl" default:"60s"`
		RateLimit             struct {
			RPS   float64 `yaml:"rps" default:"20"`
			Burst int     `yaml:"burst" default:"40"`
		} `yaml:"rate_limit"`
	} `yaml:"risk"`
	Realtime struct {
		Enabled      bool          `yaml:"enabled" default:"true"`
		SendBuffer   int           `yaml:"send_buffer" default:"64"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"realtime"`
}

var validate = validator.New()

// Default returns a configuration with every default applied and nothing read from disk.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Validation runs after the overrides so secrets can come from the environment only.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SELLERGUARD_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("SELLERGUARD_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("SELLERGUARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("SELLERGUARD_SYNC_ACCOUNTS"); v != "" {
		c.Sync.Accounts = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("MARKETPLACE_ACCESS_TOKEN"); v != "" {
		c.Marketplace.AccessToken = v
	}
}

// Validate checks struct rules and the cross-field requirements between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Sync.Enabled {
		if c.Marketplace.AccessToken == "" {
			return fmt.Errorf("marketplace.access_token is required when sync is enabled")
		}
		if len(c.Sync.Accounts) == 0 {
			return fmt.Errorf("sync.accounts cannot be empty when sync is enabled")
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
