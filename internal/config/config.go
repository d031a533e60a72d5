package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the immutable application configuration. It is loaded once at
// startup and passed explicitly to the components that need it; nothing else
// in the application keeps module-level mutable state.
type Config struct {
	AppPort      string
	DatabasePath string
	TokenSecret  string
	RabbitMQURL  string
	SessionTTL   time.Duration
	// DevReset drops and recreates all tables before bootstrapping. It exists
	// for local development fixtures only and must never be set in production.
	DevReset bool
}

// Load reads configuration from environment variables, falling back to
// defaults suitable for local development.
func Load() Config {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_PATH", "warung.db")
	v.SetDefault("TOKEN_SECRET", "dev_token_secret")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("DEV_RESET", false)
	v.AutomaticEnv()

	return Config{
		AppPort:      v.GetString("APP_PORT"),
		DatabasePath: v.GetString("DATABASE_PATH"),
		TokenSecret:  v.GetString("TOKEN_SECRET"),
		RabbitMQURL:  v.GetString("RABBITMQ_URL"),
		SessionTTL:   v.GetDuration("SESSION_TTL"),
		DevReset:     v.GetBool("DEV_RESET"),
	}
}
