package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall companion configuration.
type Config struct {
	BuildVersion string           `yaml:"build_version"`
	Server       ServerConfig     `yaml:"server"`
	Backend      BackendConfig    `yaml:"backend"`
	Auth         AuthConfig       `yaml:"auth"`
	Database     DatabaseConfig   `yaml:"database"`
	Cache        CacheConfig      `yaml:"cache"`
	Poller       PollerConfig     `yaml:"poller"`
	Push         PushConfig       `yaml:"push"`
	WorkerPool   WorkerPoolConfig `yaml:"worker_pool"`
	Venue        VenueConfig      `yaml:"venue"`
}

// ServerConfig holds the local API configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	LogJSON         bool     `yaml:"log_json"`
}

// BackendConfig describes the booking REST backend.
type BackendConfig struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
	HTTPProxy      string            `yaml:"http_proxy"`
	Headers        map[string]string `yaml:"headers"`
	MaxReplays     int               `yaml:"max_replays"`
	RequestsPerSec float64           `yaml:"requests_per_sec"`
	RequestBurst   int               `yaml:"request_burst"`
}

// AuthConfig holds what the silent re-authentication needs.
type AuthConfig struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	FeishuCode string `yaml:"feishu_code"`
}

// DatabaseConfig holds the local storage connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CacheConfig controls the persisted TTL cache.
type CacheConfig struct {
	DefaultTTLSeconds      int `yaml:"default_ttl_seconds"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
}

// PollerConfig controls invitation polling.
type PollerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// VenueConfig holds venue-level settings.
type VenueConfig struct {
	Timezone string `yaml:"timezone"`
}

// Load reads the configuration from the given path and applies environment overrides.
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
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SEATD_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("SEATD_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("SEATD_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("SEATD_VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.BuildVersion == "" {
		cfg.BuildVersion = "dev"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8088
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 10
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	if cfg.Backend.MaxReplays <= 0 {
		cfg.Backend.MaxReplays = 2
	}
	if cfg.Backend.RequestsPerSec <= 0 {
		cfg.Backend.RequestsPerSec = 20
	}
	if cfg.Backend.RequestBurst <= 0 {
		cfg.Backend.RequestBurst = 10
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "sqlite://seatd.db"
	}

	if cfg.Cache.DefaultTTLSeconds <= 0 {
		cfg.Cache.DefaultTTLSeconds = 300
	}
	if cfg.Cache.CleanupIntervalSeconds <= 0 {
		cfg.Cache.CleanupIntervalSeconds = 600
	}

	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 30
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Venue.Timezone == "" {
		cfg.Venue.Timezone = "Asia/Shanghai"
	}
}
