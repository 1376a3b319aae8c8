package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the planner.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Telegram TelegramConfig `yaml:"telegram"`
	Reports  ReportsConfig  `yaml:"reports"`
	Planning PlanningConfig `yaml:"planning"`
	Google   GoogleConfig   `yaml:"google"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type ReportsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type PlanningConfig struct {
	DefaultCapacityMinutes int    `yaml:"default_capacity_minutes"`
	DayStart               string `yaml:"day_start"`
}

type GoogleConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	WebhookURL   string        `yaml:"webhook_url"`
	WatchTTL     time.Duration `yaml:"watch_ttl"`
	RenewAt      string        `yaml:"renew_at"`
	RenewWindow  time.Duration `yaml:"renew_window"`
	SyncInline   bool          `yaml:"sync_inline"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// environment variables, which win, and fills sane defaults.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)

	if _, err := ParseClock(cfg.Planning.DayStart); err != nil {
		return cfg, fmt.Errorf("planning.day_start: %w", err)
	}
	if _, err := ParseClock(cfg.Google.RenewAt); err != nil {
		return cfg, fmt.Errorf("google.renew_at: %w", err)
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		return cfg, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	return cfg, nil
}

// ValidateServe checks the settings only the long-running server needs.
func (c Config) ValidateServe() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config %q: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	if raw := env("REPORT_INTERVAL_HOURS"); raw != "" {
		cfg.Reports.Interval = parseInterval(raw)
	}
	setInt(&cfg.Planning.DefaultCapacityMinutes, "DEFAULT_CAPACITY_MINUTES")
	setString(&cfg.Planning.DayStart, "DAY_START")
	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Google.WebhookURL, "GOOGLE_WEBHOOK_URL")
	setDuration(&cfg.Google.WatchTTL, "GOOGLE_WATCH_TTL")
	setString(&cfg.Google.RenewAt, "GOOGLE_RENEW_AT")
	setDuration(&cfg.Google.RenewWindow, "GOOGLE_RENEW_WINDOW")
	if raw := env("GOOGLE_SYNC_INLINE"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Google.SyncInline = v
		}
	}
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setDuration(&cfg.Queue.PollInterval, "QUEUE_POLL_INTERVAL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = "daily_planner.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Reports.Interval == 0 {
		cfg.Reports.Interval = 5 * time.Hour
	}
	if cfg.Planning.DefaultCapacityMinutes <= 0 {
		cfg.Planning.DefaultCapacityMinutes = 360
	}
	if cfg.Planning.DayStart == "" {
		cfg.Planning.DayStart = "09:00"
	}
	if cfg.Google.WatchTTL <= 0 {
		cfg.Google.WatchTTL = 7 * 24 * time.Hour
	}
	if cfg.Google.RenewAt == "" {
		cfg.Google.RenewAt = "03:00"
	}
	if cfg.Google.RenewWindow <= 0 {
		cfg.Google.RenewWindow = 48 * time.Hour
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// ParseClock parses an HH:MM wall-clock time into an offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := env(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
