package config

import "time"

// Config holds bot configuration values.
type Config struct {
	AccessToken  string `mapstructure:"access_token" yaml:"access_token"`
	RefreshToken string `mapstructure:"refresh_token" yaml:"refresh_token"`

	URL      string   `mapstructure:"url" yaml:"url"`
	Room     string   `mapstructure:"room" yaml:"room"`
	Prefix   []string `mapstructure:"prefix" yaml:"prefix"`
	Muted    bool     `mapstructure:"muted" yaml:"muted"`
	LogLevel string   `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	RoomsRefreshInterval time.Duration `mapstructure:"rooms_refresh_interval" yaml:"rooms_refresh_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Prefix:               []string{"!"},
		Muted:                true,
		LogLevel:             "info",
		DatabasePath:         "howlbot.db",
		HeartbeatInterval:    8 * time.Second,
		RoomsRefreshInterval: 2 * time.Minute,
	}
}
