package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Filter    FilterConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address         string
	GeoJSON         bool                  `mapstructure:"geojson"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int `mapstructure:"maxPerIP"`
}

type TransportConfig struct {
	PingInterval time.Duration `mapstructure:"pingInterval"`
	PingTimeout  time.Duration `mapstructure:"pingTimeout"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

// AuthConfig carries the credential cipher material. Key and IV are
// hex-encoded; Secret is itself an encrypted blob, decrypted once at startup.
type AuthConfig struct {
	Key    string `mapstructure:"key"`
	IV     string `mapstructure:"iv"`
	Secret string `mapstructure:"secret"`
	Header string `mapstructure:"header"`
}

type RedisConfig struct {
	Host      string
	Port      int
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"keyPrefix"`
	Channel   string        `mapstructure:"channel"`
	OpTimeout time.Duration `mapstructure:"opTimeout"`
}

type FilterConfig struct {
	Policy string `mapstructure:"policy"` // "pseudo-ip" or "time-range"
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
