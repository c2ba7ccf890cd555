// Package config loads the Moonlapse server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// MOONLAPSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. MOONLAPSE_PORT.
const EnvPrefix = "moonlapse"

// Config is the server configuration.
type Config struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	TickRate        int    `yaml:"tick_rate" split_words:"true"`
	MailboxCapacity int    `yaml:"mailbox_capacity" split_words:"true"`
	KeysDir         string `yaml:"keys_dir" split_words:"true"`
	DataDir         string `yaml:"data_dir" split_words:"true"` // empty keeps accounts in memory
	BcryptCost      int    `yaml:"bcrypt_cost" split_words:"true"`
	LogLevel        string `yaml:"log_level" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:            42523,
		TickRate:        5,
		MailboxCapacity: 10,
		KeysDir:         "Keys",
		BcryptCost:      bcrypt.DefaultCost,
		LogLevel:        "info",
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.MailboxCapacity <= 0 {
		return fmt.Errorf("mailbox capacity must be positive, got %d", c.MailboxCapacity)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost out of range: %d", c.BcryptCost)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ListenAddr returns the host:port to bind. IPv6 hosts are bracketed.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
