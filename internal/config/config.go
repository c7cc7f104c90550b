package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

const (
	PolicyBestEffort   = "best_effort"
	PolicyAllOrNothing = "all_or_nothing"
)

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type ClickHouseConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	DatabaseConfig `mapstructure:",squash"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchWait      time.Duration `mapstructure:"batch_wait"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
	MaxWait        int      `mapstructure:"max_wait_ms"` // longest a fetch waits for min_bytes
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	FallbackGroups string        `mapstructure:"fallback_groups"` // comma-separated
	Breaker        BreakerConfig `mapstructure:"breaker"`
}

// FallbackGroupIDs splits the comma-separated fallback list, dropping blanks.
func (g GatewayConfig) FallbackGroupIDs() []string {
	return SplitList(g.FallbackGroups)
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type ProductsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	GroupDelay       time.Duration `mapstructure:"group_delay"`
	CompletionPolicy string        `mapstructure:"completion_policy"` // best_effort | all_or_nothing
	Retry            RetryConfig   `mapstructure:"retry"`
}

type CloneQueueConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	GroupDelay     time.Duration `mapstructure:"group_delay"`
	DrainDelay     time.Duration `mapstructure:"drain_delay"` // pause between messages in a manual drain
	SpacingMinutes int           `mapstructure:"spacing_minutes"`
	FirstDelay     time.Duration `mapstructure:"first_delay"`
	SettingsFile   string        `mapstructure:"settings_file"`
	RetentionDays  int           `mapstructure:"retention_days"`
	SendingTimeout time.Duration `mapstructure:"sending_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

type SchedulerConfig struct {
	Timezone    string           `mapstructure:"timezone"`
	StopTimeout time.Duration    `mapstructure:"stop_timeout"`
	ResolverTTL time.Duration    `mapstructure:"resolver_ttl"`
	Products    ProductsConfig   `mapstructure:"products"`
	CloneQueue  CloneQueueConfig `mapstructure:"clone_queue"`
}

// Location resolves the configured timezone, falling back to UTC.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (PROMO_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (PROMO_GATEWAY_BASE_URL, ...)
	v.SetEnvPrefix("PROMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names the gateway deployment already exports
	_ = v.BindEnv("gateway.base_url", "PROMO_GATEWAY_BASE_URL", "WHATSAPP_MONITOR_URL")
	_ = v.BindEnv("gateway.fallback_groups", "PROMO_GATEWAY_FALLBACK_GROUPS", "WHATSAPP_AUTO_SEND_GROUPS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the dispatchers cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		errs = append(errs, errors.New("gateway.base_url is empty"))
	}
	if c.Scheduler.Products.PollInterval <= 0 {
		errs = append(errs, errors.New("scheduler.products.poll_interval must be positive"))
	}
	if c.Scheduler.CloneQueue.PollInterval <= 0 {
		errs = append(errs, errors.New("scheduler.clone_queue.poll_interval must be positive"))
	}
	if c.Scheduler.CloneQueue.SpacingMinutes <= 0 {
		errs = append(errs, errors.New("scheduler.clone_queue.spacing_minutes must be positive"))
	}
	if c.Scheduler.CloneQueue.Retry.MaxAttempts < 1 || c.Scheduler.Products.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	switch c.Scheduler.Products.CompletionPolicy {
	case PolicyBestEffort, PolicyAllOrNothing:
	default:
		errs = append(errs, fmt.Errorf("unknown completion_policy %q", c.Scheduler.Products.CompletionPolicy))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma-separated list, trimming entries and dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
