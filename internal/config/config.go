// Package config loads the wizard's versioned YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/ChallengeWizard/internal/logging"
	"github.com/AaronLay10/ChallengeWizard/internal/storage/postgres"
)

const (
	DefaultAPIBaseURL         = "http://localhost:8000"
	DefaultChannelBaseURL     = "ws://localhost:8000"
	DefaultValidationDebounce = time.Second
	DefaultMonitorPort        = 8090
	DefaultTopicPrefix        = "challenges/launched"
)

// Config is the root of wizard.yaml.
type Config struct {
	Version int `yaml:"version"`
	API     struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		// Token is never read from the file; see ApplyEnv.
		Token string `yaml:"-"`
	} `yaml:"api"`
	Channel struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"channel"`
	Wizard struct {
		ValidationDebounce time.Duration `yaml:"validation_debounce"`
	} `yaml:"wizard"`
	Monitor struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"monitor"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled         bool `yaml:"enabled"`
		postgres.Config `yaml:",inline"`
	} `yaml:"postgres"`
	Log logging.Config `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Version: 1}
	cfg.fill()
	return cfg
}

func (c *Config) fill() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Channel.BaseURL == "" {
		c.Channel.BaseURL = DefaultChannelBaseURL
	}
	if c.Wizard.ValidationDebounce <= 0 {
		c.Wizard.ValidationDebounce = DefaultValidationDebounce
	}
	if c.Monitor.Port == 0 {
		c.Monitor.Port = DefaultMonitorPort
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "challenge-wizard"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Load reads and validates a config file. Missing values take defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported wizard.yaml version: %d", cfg.Version)
	}
	if cfg.Monitor.Port < 0 || cfg.Monitor.Port > 65535 {
		return nil, fmt.Errorf("invalid monitor port: %d", cfg.Monitor.Port)
	}

	cfg.fill()
	return &cfg, nil
}

// ApplyEnv overrides the endpoints from WIZARD_API_BASE_URL and
// WIZARD_WS_BASE_URL and resolves the API token and database password.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("WIZARD_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("WIZARD_WS_BASE_URL"); v != "" {
		c.Channel.BaseURL = v
	}
	token, err := ResolveSecret("WIZARD_API_TOKEN")
	if err != nil {
		return err
	}
	if token != "" {
		c.API.Token = token
	}
	pw, err := ResolveSecret("PGPASSWORD")
	if err != nil {
		return err
	}
	if pw != "" {
		c.Postgres.Password = pw
	}
	return nil
}
