package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Cache         CacheConfig           `mapstructure:"cache"`
	JWT           JWTConfig             `mapstructure:"jwt"`
	RateLimit     RateLimitConfig       `mapstructure:"rate_limit"`
	Logging       LoggingConfig         `mapstructure:"logging"`
	Invitations   InvitationsConfig     `mapstructure:"invitations"`
	Plans         map[string]PlanConfig `mapstructure:"plans"`
	DefaultPlan   string                `mapstructure:"default_plan"`
	Notifications NotificationsConfig   `mapstructure:"notifications"`
	Worker        WorkerConfig          `mapstructure:"worker"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	MaxConnections int           `mapstructure:"max_connections"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
}

type CacheConfig struct {
	OrganizationTTL time.Duration `mapstructure:"organization_ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type InvitationsConfig struct {
	ValidityWindow time.Duration `mapstructure:"validity_window"`
	ResendCap      int           `mapstructure:"resend_cap"`
}

// PlanConfig limits use -1 for unbounded.
type PlanConfig struct {
	MaxCustomRoles    int `mapstructure:"max_custom_roles"`
	MaxTemplateUsages int `mapstructure:"max_template_usages"`
}

type NotificationsConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
}

type WorkerConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.path", "data/orgauthz.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("cache.organization_ttl", time.Minute)
	v.SetDefault("cache.max_entries", 1024)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("rate_limit.api_write_per_minute", 120)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("invitations.validity_window", 7*24*time.Hour)
	v.SetDefault("invitations.resend_cap", 5)

	v.SetDefault("default_plan", "free")

	v.SetDefault("notifications.timeout", 10*time.Second)
	v.SetDefault("notifications.retries", 3)

	v.SetDefault("worker.sweep_schedule", "@every 5m")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
