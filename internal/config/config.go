package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Database       DatabaseConfig       `mapstructure:"database" yaml:"database"`
	AI             AIConfig             `mapstructure:"ai" yaml:"ai"`
	Email          EmailConfig          `mapstructure:"email" yaml:"email"`
	Automation     AutomationConfig     `mapstructure:"automation" yaml:"automation"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	JWT            JWTConfig            `mapstructure:"jwt" yaml:"jwt"`
	Cron           CronConfig           `mapstructure:"cron" yaml:"cron"`
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring" yaml:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security" yaml:"security"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // public app URL used in notification routes and emails
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`       // overrides the discrete fields when set
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	Name            string        `mapstructure:"name" yaml:"name"`
	SSLMode         string        `mapstructure:"sslmode" yaml:"sslmode"`
	TimeZone        string        `mapstructure:"timezone" yaml:"timezone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// PostgresDSN assembles a libpq keyword DSN unless DSN is set explicitly.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

type AIConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key" yaml:"resend_api_key"`
	FromAddress  string `mapstructure:"from_address" yaml:"from_address"`
	FromName     string `mapstructure:"from_name" yaml:"from_name"`
}

// AutomationConfig tunes the detectors and the dispatcher.
type AutomationConfig struct {
	BudgetThreshold   float64       `mapstructure:"budget_threshold" yaml:"budget_threshold"`       // ratio, 0.8 = 80%
	DefaultHourlyRate float64       `mapstructure:"default_hourly_rate" yaml:"default_hourly_rate"` // used when a task has no rate
	InactivityDays    int           `mapstructure:"inactivity_days" yaml:"inactivity_days"`
	DedupWindow       time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
	EventWindow       time.Duration `mapstructure:"event_window" yaml:"event_window"`
	MaxScanRows       int           `mapstructure:"max_scan_rows" yaml:"max_scan_rows"`
	Schedule          string        `mapstructure:"schedule" yaml:"schedule"` // cron expression for `taskelio monitor --schedule`
}

type CircuitBreakerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxFailures     int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout    time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
	HalfOpenMaxReqs int           `mapstructure:"half_open_max_requests" yaml:"half_open_max_requests"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
	Issuer string `mapstructure:"issuer" yaml:"issuer"` // optional, checked when set
}

type CronConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	Output     string `mapstructure:"output" yaml:"output"` // stdout, file, both
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // MB
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // number of backup files
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type MonitoringConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath string        `mapstructure:"metrics_path" yaml:"metrics_path"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`         // OTLP gRPC endpoint, e.g. http://otel-collector:4317
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`         // plaintext for local collectors
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"` // 0.0~1.0
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
}

type RateLimitingConfig struct {
	Enabled           bool                  `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int                   `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int                   `mapstructure:"burst" yaml:"burst"`
	KeyHeader         string                `mapstructure:"key_header" yaml:"key_header"`
	WhitelistIPs      []string              `mapstructure:"whitelist_ips" yaml:"whitelist_ips"`
	WhitelistKeys     []string              `mapstructure:"whitelist_keys" yaml:"whitelist_keys"`
	Paths             []PathRateLimitConfig `mapstructure:"paths" yaml:"paths"`
}

// PathRateLimitConfig overrides the global limit for a route prefix.
type PathRateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	Prefix            string `mapstructure:"prefix" yaml:"prefix"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int    `mapstructure:"burst" yaml:"burst"`
}

// Load unmarshals viper state on top of the defaults.
func Load() (*Config, error) {
	cfg := GetDefaultConfig()
	bindEnvs(reflect.TypeOf(*cfg), "")
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// bindEnvs registers every leaf key so AutomaticEnv also covers keys that
// are absent from the config file.
func bindEnvs(t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(f.Type, key)
			continue
		}
		_ = viper.BindEnv(key)
	}
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "taskelio",
			SSLMode:         "disable",
			TimeZone:        "UTC",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o-mini",
				Temperature: 0.3,
				MaxTokens:   1000,
				Timeout:     30 * time.Second,
			},
		},
		Email: EmailConfig{
			FromAddress: "noreply@taskelio.app",
			FromName:    "Taskelio",
		},
		Automation: AutomationConfig{
			BudgetThreshold:   0.8,
			DefaultHourlyRate: 50,
			InactivityDays:    30,
			DedupWindow:       2 * time.Hour,
			EventWindow:       time.Hour,
			MaxScanRows:       5000,
			Schedule:          "0 * * * *",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:         true,
			MaxFailures:     5,
			ResetTimeout:    60 * time.Second,
			HalfOpenMaxReqs: 3,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "./logs/taskelio.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "taskelio",
			},
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Cron-Secret"},
			},
			RateLimiting: RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
				Paths: []PathRateLimitConfig{
					{Enabled: true, Prefix: "/api/ai", RequestsPerMinute: 20, Burst: 5},
				},
			},
		},
	}
}
