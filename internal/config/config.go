/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
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

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix      string `mapstructure:"REDIS_KEY_PREFIX"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	PipelineQueuePrefix string `mapstructure:"PIPELINE_QUEUE_PREFIX"`
	BankAPIBaseURL      string `mapstructure:"BANK_API_BASE_URL"`
	BankAPIKey          string `mapstructure:"BANK_API_KEY"`
	ClassifierModel     string `mapstructure:"CLASSIFIER_MODEL"`
	FetchSchedule       string `mapstructure:"FETCH_SCHEDULE"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	ConsumerMaxRetries  int    `mapstructure:"CONSUMER_MAX_RETRIES"`
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
	viper.SetDefault("REDIS_KEY_PREFIX", "ledger")
	viper.SetDefault("PIPELINE_QUEUE_PREFIX", "ledger_service.pipeline")
	viper.SetDefault("CLASSIFIER_MODEL", "gemini-2.0-flash")
	viper.SetDefault("FETCH_SCHEDULE", "0 6 * * *")
	viper.SetDefault("CONSUMER_MAX_RETRIES", 3)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PIPELINE_QUEUE_PREFIX")
	_ = viper.BindEnv("BANK_API_BASE_URL")
	_ = viper.BindEnv("BANK_API_KEY")
	_ = viper.BindEnv("CLASSIFIER_MODEL")
	_ = viper.BindEnv("FETCH_SCHEDULE")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "LEDGER_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CONSUMER_MAX_RETRIES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("LEDGER_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "ledger"
	}
	if strings.TrimSpace(config.FetchSchedule) == "" {
		config.FetchSchedule = "0 6 * * *"
	}
	if config.ConsumerMaxRetries <= 0 {
		config.ConsumerMaxRetries = 3
	}

	return
}
