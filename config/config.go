package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fuelq/core/allocation"
	"github.com/kilianp07/fuelq/core/factory"
	"github.com/kilianp07/fuelq/core/metrics"
	"github.com/kilianp07/fuelq/infra/mqtt"
)

type Config struct {
	Store         factory.ModuleConfig `json:"store"`
	Allocation    allocation.Config    `json:"allocation"`
	MQTT          mqtt.Config          `json:"mqtt"`
	Notifications NotificationsConfig  `json:"notifications"`
	Metrics       metrics.Config       `json:"metrics"`
	Logging       LoggingConfig        `json:"logging"`
	Sentry        SentryConfig         `json:"sentry"`
	HTTP          HTTPConfig           `json:"http"`
}

// Load reads a YAML or JSON file and applies K_ prefixed environment
// overrides, where a double underscore separates nested keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	c.Allocation.SetDefaults()
	c.Notifications.SetDefaults()
	c.Logging.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Allocation.Validate(); err != nil {
		return err
	}
	if err := c.Notifications.Validate(c.MQTT); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
