// ABOUTME: Configuration loading for the integrator socket server
// ABOUTME: Reads YAML through viper with defaults, PHP_INTEGRATOR_* env overrides and validation

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/harper/php-integrator/internal/framing"
	"github.com/harper/php-integrator/internal/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. PHP_INTEGRATOR_SERVER_PORT.
const EnvPrefix = "PHP_INTEGRATOR"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Limits   LimitsConfig   `mapstructure:"limits" json:"limits"`
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
	Dispatch DispatchConfig `mapstructure:"dispatch" json:"dispatch"`
}

type ServerConfig struct {
	Host           string `mapstructure:"host" json:"host"`
	Port           int    `mapstructure:"port" json:"port"`
	SocketPath     string `mapstructure:"socket_path" json:"socket_path"`
	HTTPHost       string `mapstructure:"http_host" json:"http_host"`
	HTTPPort       int    `mapstructure:"http_port" json:"http_port"`
	WebSocketHost  string `mapstructure:"websocket_host" json:"websocket_host"`
	WebSocketPort  int    `mapstructure:"websocket_port" json:"websocket_port"`
	ManagementHost string `mapstructure:"management_host" json:"management_host"`
	ManagementPort int    `mapstructure:"management_port" json:"management_port"`
}

type LimitsConfig struct {
	MaxContentLength      int `mapstructure:"max_content_length" json:"max_content_length"`
	MaxConcurrentCommands int `mapstructure:"max_concurrent_commands" json:"max_concurrent_commands"`
	MaxConnections        int `mapstructure:"max_connections" json:"max_connections"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose" json:"verbose"`
}

type DispatchConfig struct {
	// Aliases maps an extra method name to a registered one.
	Aliases map[string]string `mapstructure:"aliases" json:"aliases"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9999)
	v.SetDefault("server.socket_path", "")
	v.SetDefault("server.http_host", "127.0.0.1")
	v.SetDefault("server.http_port", 0)
	v.SetDefault("server.websocket_host", "127.0.0.1")
	v.SetDefault("server.websocket_port", 0)
	v.SetDefault("server.management_host", "127.0.0.1")
	v.SetDefault("server.management_port", 0)
	v.SetDefault("limits.max_content_length", framing.DefaultMaxContentLength)
	v.SetDefault("limits.max_concurrent_commands", 4)
	v.SetDefault("limits.max_connections", 0)
	v.SetDefault("database.path", "")
	v.SetDefault("logging.verbose", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return finish(newViper(), nil)
}

func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	//nolint:gosec // config file path from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return finish(v, data)
}

func finish(v *viper.Viper, raw []byte) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Viper lowercases map keys but method names are case-sensitive
	if raw != nil {
		var rawConfig struct {
			Dispatch struct {
				Aliases map[string]string `yaml:"aliases"`
			} `yaml:"dispatch"`
		}
		if err := yaml.Unmarshal(raw, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.Dispatch.Aliases = rawConfig.Dispatch.Aliases
	}

	cfg.Database.Path = xdg.ExpandPath(cfg.Database.Path)
	cfg.Server.SocketPath = xdg.ExpandPath(cfg.Server.SocketPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.SocketPath == "" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	for name, port := range map[string]int{
		"server.http_port":       c.Server.HTTPPort,
		"server.websocket_port":  c.Server.WebSocketPort,
		"server.management_port": c.Server.ManagementPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}
	if c.Limits.MaxContentLength <= 0 {
		return fmt.Errorf("invalid limits.max_content_length: %d (must be positive)", c.Limits.MaxContentLength)
	}
	if c.Limits.MaxConcurrentCommands < 1 {
		return fmt.Errorf("invalid limits.max_concurrent_commands: %d (must be at least 1)", c.Limits.MaxConcurrentCommands)
	}
	if c.Limits.MaxConnections < 0 {
		return fmt.Errorf("invalid limits.max_connections: %d", c.Limits.MaxConnections)
	}
	for alias, target := range c.Dispatch.Aliases {
		if alias == "" || target == "" {
			return fmt.Errorf("invalid dispatch alias %q -> %q", alias, target)
		}
	}
	return nil
}

// Address is the host:port the TCP listener binds.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Network is "unix" when a socket path is configured, "tcp" otherwise.
func (s ServerConfig) Network() string {
	if s.SocketPath != "" {
		return "unix"
	}
	return "tcp"
}

// ListenAddress is the address passed to net.Listen for Network.
func (s ServerConfig) ListenAddress() string {
	if s.SocketPath != "" {
		return s.SocketPath
	}
	return s.Address()
}
