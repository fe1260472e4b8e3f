// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Replicate struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string `mapstructure:"token"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"replicate"`
	Monitor struct {
		PollIntervalSeconds   int `mapstructure:"poll_interval_seconds"`
		RetryMaxAttempts      int `mapstructure:"retry_max_attempts"`
		RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds"`
		RetryMaxDelaySeconds  int `mapstructure:"retry_max_delay_seconds"`
	} `mapstructure:"monitor"`
	Jobs struct {
		MinImages      int `mapstructure:"min_images"`
		MaxImages      int `mapstructure:"max_images"`
		RetentionHours int `mapstructure:"retention_hours"`
	} `mapstructure:"jobs"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "FLUXGEN_" prefix.
	// e.g., FLUXGEN_REPLICATE_TOKEN will override the `replicate.token` key.
	viper.SetEnvPrefix("FLUXGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./fluxgen.db")
	viper.SetDefault("replicate.base_url", "https://api.replicate.com/v1")
	viper.SetDefault("replicate.token", "")
	viper.SetDefault("replicate.model", "black-forest-labs/flux-schnell")
	viper.SetDefault("monitor.poll_interval_seconds", 10)
	viper.SetDefault("monitor.retry_max_attempts", 5)
	viper.SetDefault("monitor.retry_base_delay_seconds", 4)
	viper.SetDefault("monitor.retry_max_delay_seconds", 10)
	viper.SetDefault("jobs.min_images", 5)
	viper.SetDefault("jobs.max_images", 20)
	viper.SetDefault("jobs.retention_hours", 24)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
