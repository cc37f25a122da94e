// Package config loads server settings from an optional YAML file with
// environment overrides. Flags, handled in cmd, win over both.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"jibber/internal/chat"
	apperr "jibber/pkg/errors"
)

// Duration lets YAML carry values like "5s" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid duration "+s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Addr     string `yaml:"addr"`
	DataPath string `yaml:"data_path"`

	Theme chat.Theme `yaml:"theme"`
	Seed  bool       `yaml:"seed"`

	Assistant Assistant `yaml:"assistant"`
	Notify    Notify    `yaml:"notifications"`
}

type Assistant struct {
	URL     string   `yaml:"url"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

type Notify struct {
	Cap int      `yaml:"cap"`
	TTL Duration `yaml:"ttl"`
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		DataPath: "./data",
		Theme:    chat.ThemeDark,
		Seed:     true,
		Assistant: Assistant{
			Timeout: Duration(10 * time.Second),
		},
		Notify: Notify{
			Cap: 50,
			TTL: Duration(24 * time.Hour),
		},
	}
}

// Load reads the YAML file at path (missing file is fine when path is
// empty) and applies environment overrides on top of defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, apperr.Wrap(apperr.CodeInternal, "read config file", err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, apperr.Wrap(apperr.CodeValidation, "parse config file", err)
		}
	}

	cfg.applyEnv()

	if cfg.Theme != chat.ThemeDark && cfg.Theme != chat.ThemeLight {
		return cfg, apperr.Validation("theme must be dark or light")
	}
	if cfg.Notify.Cap <= 0 {
		cfg.Notify.Cap = Default().Notify.Cap
	}
	if cfg.Notify.TTL <= 0 {
		cfg.Notify.TTL = Default().Notify.TTL
	}
	if cfg.Assistant.Timeout <= 0 {
		cfg.Assistant.Timeout = Default().Assistant.Timeout
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JIBBER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("JIBBER_DATA_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("JIBBER_THEME"); v != "" {
		c.Theme = chat.Theme(v)
	}
	if v := os.Getenv("JIBBER_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Seed = b
		}
	}
	if v := os.Getenv("JIBBER_ASSISTANT_URL"); v != "" {
		c.Assistant.URL = v
	}
	if v := os.Getenv("JIBBER_ASSISTANT_MODEL"); v != "" {
		c.Assistant.Model = v
	}
}
