package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for one crawl run.
type Config struct {
	ChannelURL   string `mapstructure:"CHANNEL_URL"`
	ChefID       string `mapstructure:"CHEF_ID"`
	VideoLimit   int    `mapstructure:"VIDEO_LIMIT"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
	PostgresURL  string `mapstructure:"POSTGRES_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	MetricsPort  string `mapstructure:"METRICS_PORT"`
	VideoDelayMS int    `mapstructure:"VIDEO_DELAY_MS"`
	TempDir      string `mapstructure:"TEMP_DIR"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables.
	_ = viper.ReadInConfig()

	// Set default values
	viper.SetDefault("CHANNEL_URL", "")
	viper.SetDefault("CHEF_ID", "")
	viper.SetDefault("VIDEO_LIMIT", 100)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-pro")
	viper.SetDefault("POSTGRES_URL", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("METRICS_PORT", "9090")
	viper.SetDefault("VIDEO_DELAY_MS", 1000)
	viper.SetDefault("TEMP_DIR", os.TempDir())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required values. A failure here is fatal and must
// abort the run before any video is processed.
func (c *Config) Validate() error {
	var missing []string
	if c.ChannelURL == "" {
		missing = append(missing, "CHANNEL_URL")
	}
	if c.ChefID == "" {
		missing = append(missing, "CHEF_ID")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.PostgresURL == "" {
		missing = append(missing, "POSTGRES_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.VideoLimit < 1 {
		return fmt.Errorf("VIDEO_LIMIT must be at least 1, got %d", c.VideoLimit)
	}
	return nil
}
