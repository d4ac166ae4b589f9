package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":3069")
	v.SetDefault("server.geojson", false)
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("transport.pingInterval", "30s")
	v.SetDefault("transport.pingTimeout", "10s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("auth.header", "x-api-key")
	v.SetDefault("auth.key", "")
	v.SetDefault("auth.iv", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 1)
	v.SetDefault("redis.keyPrefix", "truck")
	v.SetDefault("redis.channel", "position-updates")
	v.SetDefault("redis.opTimeout", "5s")
	v.SetDefault("filter.policy", "pseudo-ip")
	v.SetDefault("logging.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("GPSSOCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
