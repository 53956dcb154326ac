package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Binance struct {
		SpotRESTBase      string        `yaml:"spot_rest_base"`
		FuturesRESTBase   string        `yaml:"futures_rest_base"`
		SpotStreamBase    string        `yaml:"spot_stream_base"`
		FuturesStreamBase string        `yaml:"futures_stream_base"`
		KlinesRPS         float64       `yaml:"klines_rps"`
		HTTPTimeout       time.Duration `yaml:"http_timeout"`
		PingInterval      time.Duration `yaml:"ping_interval"`
	} `yaml:"binance"`
	Chart struct {
		DefaultSymbol   string        `yaml:"default_symbol"`
		DefaultInterval string        `yaml:"default_interval"`
		DefaultMarket   string        `yaml:"default_market"`
		BackfillCount   int           `yaml:"backfill_count"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
	} `yaml:"chart"`
	Backend struct {
		Type         string        `yaml:"type"` // none | kafka
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Cache struct {
		MemoryMaxSize int    `yaml:"memory_max_size"`
		Prefix        string `yaml:"prefix"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("DEFAULT_SYMBOL"); v != "" {
		c.Chart.DefaultSymbol = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Binance.SpotRESTBase == "" {
		return fmt.Errorf("binance.spot_rest_base is required")
	}
	if c.Binance.SpotStreamBase == "" {
		return fmt.Errorf("binance.spot_stream_base is required")
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "none"
	}
	if c.Backend.Type != "none" && c.Backend.Type != "kafka" {
		return fmt.Errorf("backend.type must be 'none' or 'kafka', got '%s'", c.Backend.Type)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend is kafka")
	}
	if c.Chart.DefaultSymbol == "" {
		c.Chart.DefaultSymbol = "BTCUSDT"
	}
	if c.Chart.DefaultInterval == "" {
		c.Chart.DefaultInterval = "1h"
	}
	if c.Chart.DefaultMarket == "" {
		c.Chart.DefaultMarket = "spot"
	}
	if c.Chart.BackfillCount <= 0 {
		c.Chart.BackfillCount = 500
	}
	return nil
}
