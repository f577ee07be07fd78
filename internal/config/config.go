// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"register-terminal/internal/protocol"
)

// EnvPrefix prefixes environment overrides, e.g. REGTERM_SERIAL_PORT
const EnvPrefix = "REGTERM"

// Config represents the application configuration
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Console  ConsoleConfig  `mapstructure:"console"`
	App      AppConfig      `mapstructure:"app"`
}

// SerialConfig represents the connection opened at startup. Port may be empty,
// in which case the front-end opens a connection on request.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ProtocolConfig represents register protocol timing
type ProtocolConfig struct {
	GraceDelay time.Duration `mapstructure:"grace_delay"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ConsoleConfig represents interactive console configuration
type ConsoleConfig struct {
	Prompt      string `mapstructure:"prompt"`
	HistoryFile string `mapstructure:"history_file"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogHistory  int    `mapstructure:"log_history"`
}

// Load loads configuration from defaults, an optional YAML file and
// REGTERM_* environment variables. An explicit path must exist.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadWithFlags is Load with command-line overrides. Recognized flags are
// --port, --baud and --read-timeout; unset flags do not override.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	return load(path, flags)
}

// RegisterFlags adds the flags understood by LoadWithFlags
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "path to a YAML config file")
	flags.StringP("port", "p", "", "serial port to open, e.g. COM5, /dev/ttyUSB0 or tcp://host:port")
	flags.IntP("baud", "b", 0, "baud rate")
	flags.Duration("read-timeout", 0, "response read timeout")
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// defaults and environment only
		case path == "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"serial.port":         "port",
		"serial.baud_rate":    "baud",
		"serial.read_timeout": "read-timeout",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Serial defaults
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.read_timeout", "1s")
	v.SetDefault("serial.dial_timeout", "5s")

	// Protocol defaults
	v.SetDefault("protocol.grace_delay", "50ms")

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Console defaults
	v.SetDefault("console.prompt", ">> ")
	v.SetDefault("console.history_file", ".regterm_history")

	// App defaults
	v.SetDefault("app.name", "register-terminal")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_history", 500)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Serial.Port != "" && !protocol.IsSupportedBaudRate(config.Serial.BaudRate) {
		return fmt.Errorf("serial.baud_rate must be one of: %v", protocol.SupportedBaudRates)
	}
	if config.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if config.Protocol.GraceDelay < 0 {
		return fmt.Errorf("protocol.grace_delay must not be negative")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.App.LogHistory <= 0 {
		return fmt.Errorf("app.log_history must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// ConnectionConfig returns the startup connection settings
func (c *Config) ConnectionConfig() protocol.ConnectionConfig {
	return protocol.ConnectionConfig{
		Port:        c.Serial.Port,
		BaudRate:    c.Serial.BaudRate,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
