/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the credit-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange     string `mapstructure:"NOTIFICATION_EXCHANGE"`
	AuthJWKSURL              string `mapstructure:"AUTH_JWKS_URL"`
	InternalAPIKey           string `mapstructure:"INTERNAL_API_KEY"`
	MaxGiftLinesPerRequest   int    `mapstructure:"MAX_GIFT_LINES_PER_REQUEST"`
	GiftSendRateLimitPerMin  int    `mapstructure:"GIFT_SEND_RATE_LIMIT_PER_MINUTE"`
	UnlockRateLimitPerMin    int    `mapstructure:"UNLOCK_RATE_LIMIT_PER_MINUTE"`
	StatementDefaultPageSize int    `mapstructure:"STATEMENT_DEFAULT_PAGE_SIZE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("NOTIFICATION_EXCHANGE", "platform.notifications")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "velvetpages:rate_limit")
	viper.SetDefault("MAX_GIFT_LINES_PER_REQUEST", 10)
	viper.SetDefault("GIFT_SEND_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("UNLOCK_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("STATEMENT_DEFAULT_PAGE_SIZE", 50)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "CREDIT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("NOTIFICATION_EXCHANGE")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CREDIT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("MAX_GIFT_LINES_PER_REQUEST")
	_ = viper.BindEnv("GIFT_SEND_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("UNLOCK_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("STATEMENT_DEFAULT_PAGE_SIZE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("CREDIT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "velvetpages:rate_limit"
	}

	if config.MaxGiftLinesPerRequest <= 0 {
		log.Printf("level=warn component=config msg=\"invalid gift line cap; using default\" value=%d", config.MaxGiftLinesPerRequest)
		config.MaxGiftLinesPerRequest = 10
	}
	if config.GiftSendRateLimitPerMin < 0 {
		config.GiftSendRateLimitPerMin = 0
	}
	if config.UnlockRateLimitPerMin < 0 {
		config.UnlockRateLimitPerMin = 0
	}
	if config.StatementDefaultPageSize <= 0 {
		config.StatementDefaultPageSize = 50
	}

	return
}
