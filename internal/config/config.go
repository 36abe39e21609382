// Package config loads service settings from the environment, an optional
// .env file and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers selectable through DB_DRIVER
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Transports selectable through WHATSAPP_TRANSPORT
const (
	TransportSandbox = "sandbox"
	TransportTwilio  = "twilio"
)

// Config stores all configuration for the application.
type Config struct {
	Port           string `mapstructure:"PORT"`
	AppEnv         string `mapstructure:"APP_ENV"`
	UseMemoryStore bool   `mapstructure:"USE_MEMORY_STORE"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPass      string `mapstructure:"DB_PASS"`
	DBName      string `mapstructure:"DB_NAME"`
	DBPort      string `mapstructure:"DB_PORT"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	WhatsAppTransport          string `mapstructure:"WHATSAPP_TRANSPORT"`
	WhatsAppDefaultSession     string `mapstructure:"WHATSAPP_DEFAULT_SESSION"`
	WhatsAppRestoreConcurrency int    `mapstructure:"WHATSAPP_RESTORE_CONCURRENCY"`

	TwilioAccountSID         string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken          string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom       string `mapstructure:"TWILIO_WHATSAPP_FROM"`
	DisableWebhookValidation bool   `mapstructure:"DISABLE_WEBHOOK_VALIDATION"`

	AdminJWTSecret string `mapstructure:"ADMIN_JWT_SECRET"`

	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	WhatsAppEventExchange string `mapstructure:"WHATSAPP_EVENTS_EXCHANGE"`

	RedisURL               string `mapstructure:"REDIS_URL"`
	ChatRateLimitPerMinute int    `mapstructure:"CHAT_RATE_LIMIT_PER_MINUTE"`

	SessionReconcileCron string `mapstructure:"SESSION_RECONCILE_CRON"`
}

var keys = []string{
	"PORT", "APP_ENV", "USE_MEMORY_STORE",
	"DB_DRIVER", "DATABASE_URL", "DB_HOST", "DB_USER", "DB_PASS", "DB_NAME", "DB_PORT", "SQLITE_PATH",
	"WHATSAPP_TRANSPORT", "WHATSAPP_DEFAULT_SESSION", "WHATSAPP_RESTORE_CONCURRENCY",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_FROM", "DISABLE_WEBHOOK_VALIDATION",
	"ADMIN_JWT_SECRET",
	"RABBITMQ_URL", "WHATSAPP_EVENTS_EXCHANGE",
	"REDIS_URL", "CHAT_RATE_LIMIT_PER_MINUTE",
	"SESSION_RECONCILE_CRON",
}

// LoadConfig reads configuration from a .env file in dir (if any) and the
// environment. Environment variables win over the file.
func LoadConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	// Local development convenience; a missing file is fine
	_ = godotenv.Load(strings.TrimSuffix(dir, "/") + "/.env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("USE_MEMORY_STORE", false)
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "finbot")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SQLITE_PATH", "finbot.db")
	v.SetDefault("WHATSAPP_TRANSPORT", TransportSandbox)
	v.SetDefault("WHATSAPP_DEFAULT_SESSION", "main-session")
	v.SetDefault("WHATSAPP_RESTORE_CONCURRENCY", 4)
	v.SetDefault("WHATSAPP_EVENTS_EXCHANGE", "finbot.whatsapp")
	v.SetDefault("CHAT_RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("SESSION_RECONCILE_CRON", "@every 5m")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.WhatsAppTransport {
	case TransportSandbox:
	case TransportTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
			return fmt.Errorf("WHATSAPP_TRANSPORT=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM")
		}
	default:
		return fmt.Errorf("unknown WHATSAPP_TRANSPORT %q", c.WhatsAppTransport)
	}
	if c.WhatsAppRestoreConcurrency < 1 {
		return fmt.Errorf("WHATSAPP_RESTORE_CONCURRENCY must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// PostgresDSN returns DATABASE_URL or a DSN built from the DB_* keys
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)
}
