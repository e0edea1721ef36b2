package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Polling    PollingConfig    `yaml:"polling"`
}

// WorkerPoolConfig holds the configuration for the push alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RequestIPHeader string   `yaml:"request_ip_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	AdminJWTSecret  string   `yaml:"admin_jwt_secret"`

	CacheTTL time.Duration `yaml:"-"`
}

// UpstreamConfig describes how to reach the external check-in directory.
type UpstreamConfig struct {
	BaseURL            string `yaml:"base_url"`
	AppID              string `yaml:"app_id"`
	Secret             string `yaml:"secret"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	PerPage            int    `yaml:"per_page"`
	MaxPages           int    `yaml:"max_pages"`
	HTTPProxy          string `yaml:"http_proxy"`
	Timezone           string `yaml:"timezone"`
	SupportsDateFilter *bool  `yaml:"supports_date_filter"`

	Timeout time.Duration `yaml:"-"`
}

// DateFilterEnabled reports whether date scoping is pushed to the upstream
// query. Unset means enabled.
func (u UpstreamConfig) DateFilterEnabled() bool {
	return u.SupportsDateFilter == nil || *u.SupportsDateFilter
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PollingConfig holds the per-client poll cadences in seconds.
type PollingConfig struct {
	AdminSeconds     int `yaml:"admin_seconds"`
	BillboardSeconds int `yaml:"billboard_seconds"`
	KioskSeconds     int `yaml:"kiosk_seconds"`
	LocationSeconds  int `yaml:"location_seconds"`
	StatusSeconds    int `yaml:"status_seconds"`
	EditLeaseSeconds int `yaml:"edit_lease_seconds"`
}

// EditLease returns the manual-edit lease as a duration.
func (p PollingConfig) EditLease() time.Duration {
	return time.Duration(p.EditLeaseSeconds) * time.Second
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with their defaults and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec < 0 {
		cfg.Server.RateLimitPerSec = 0
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 12
	}
	if cfg.Upstream.TimeoutSeconds > 60 {
		cfg.Upstream.TimeoutSeconds = 60
	}
	cfg.Upstream.Timeout = time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second
	if cfg.Upstream.PerPage <= 0 {
		cfg.Upstream.PerPage = 100
	}
	if cfg.Upstream.MaxPages <= 0 {
		cfg.Upstream.MaxPages = 50
	}
	if cfg.Upstream.Timezone == "" {
		cfg.Upstream.Timezone = "UTC"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:billboard.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	p := &cfg.Polling
	p.AdminSeconds = orDefault(p.AdminSeconds, 10)
	p.BillboardSeconds = orDefault(p.BillboardSeconds, 10)
	p.KioskSeconds = orDefault(p.KioskSeconds, 15)
	p.LocationSeconds = orDefault(p.LocationSeconds, 15)
	p.StatusSeconds = orDefault(p.StatusSeconds, 30)
	p.EditLeaseSeconds = orDefault(p.EditLeaseSeconds, 10)
}

// applyEnv lets secrets live outside the YAML file.
func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&cfg.Upstream.AppID, "UPSTREAM_APP_ID")
	override(&cfg.Upstream.Secret, "UPSTREAM_SECRET")
	override(&cfg.Server.AdminJWTSecret, "ADMIN_JWT_SECRET")
	override(&cfg.Database.DSN, "DATABASE_DSN")
	override(&cfg.Push.PublicKey, "VAPID_PUBLIC_KEY")
	override(&cfg.Push.PrivateKey, "VAPID_PRIVATE_KEY")
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
