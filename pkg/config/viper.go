// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and an optional .env file, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"proxyherald/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup so that configuration is loaded and available
// to all other packages.
func InitConfig(cfgFile string) {
	// A .env file in the working directory is a convenience for local runs;
	// in CI the secrets arrive as real environment variables.
	if err := godotenv.Load(); err == nil {
		logging.L.Info("Loaded environment from .env file")
	}

	// --- Set Search Paths ---
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Define the name of the config file to look for (without extension).
		viper.SetConfigName("config")
		viper.AddConfigPath(".")                  // Current working directory
		viper.AddConfigPath("/etc/proxyherald/")  // System-wide configuration
		viper.AddConfigPath("$HOME/.proxyherald") // User-specific configuration
	}

	// --- Set Defaults ---
	// Sensible defaults for every tunable, used when neither the config file
	// nor the environment provides a value.
	viper.SetDefault("runtime.max_execution_seconds", 3300)
	viper.SetDefault("runtime.request_timeout_seconds", 30)

	viper.SetDefault("posting.proxies_per_post", 10)
	viper.SetDefault("posting.delay_seconds", 600)
	viper.SetDefault("posting.channel_handle", "")

	viper.SetDefault("paths.subscriptions", "data/subscriptions.json")
	viper.SetDefault("paths.archive", "output/archive_proxies.json")

	viper.SetDefault("logging.development", true)

	// --- Environment Variables ---
	viper.SetEnvPrefix("PROXYHERALD") // e.g., PROXYHERALD_POSTING_DELAY_SECONDS=60
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The Telegram credentials keep their conventional unprefixed names.
	_ = viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("telegram.channel_id", "TELEGRAM_CHANNEL_ID")
	_ = viper.BindEnv("posting.channel_handle", "TELEGRAM_CHANNEL_HANDLE")

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; this is not a fatal error since we can
			// proceed with defaults and environment variables.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			// A real error occurred while parsing the config file.
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
