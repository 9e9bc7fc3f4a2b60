// Package config layers gardi settings from defaults, the user config file,
// GARDI_* environment variables, and command-line flags. Lower priority
// numbers win: flags (1) beat env (2) beats file (3) beats defaults (5).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	PriorityFlag    = 1
	PriorityEnv     = 2
	PriorityFile    = 3
	PriorityDefault = 5
)

// Source records where a setting's current value came from.
type Source struct {
	Source     string `json:"source"`
	SourcePath string `json:"source_path"`
	Priority   int    `json:"priority"`
}

// Config holds every runtime setting for the CLI and the server.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	Watch       bool   `yaml:"watch"`
	LogLevel    string `yaml:"log_level"`
	WTTPath     string `yaml:"wtt_path"`
	SummaryPath string `yaml:"summary_path"`

	// Sources tracks the winning origin per field.
	Sources map[string]Source `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{
		Host:     "127.0.0.1",
		Port:     8051,
		LogLevel: "info",
		Sources:  make(map[string]Source),
	}
	for _, field := range []string{"host", "port", "debug", "watch", "log_level", "wtt_path", "summary_path"} {
		c.Sources[field] = Source{Source: "default", Priority: PriorityDefault}
	}
	return c
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gardi", "config.yaml")
}

// Load builds the effective configuration: defaults, then the config file,
// then environment variables. Flag overrides are applied afterwards by the
// command layer via Set.
func Load(path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := c.applyFile(path); err != nil {
			return nil, err
		}
	}
	c.applyEnv()

	return c, nil
}

// Set applies one setting with an explicit source, keeping the existing
// value when it came from a higher-precedence origin.
func (c *Config) Set(field, source, sourcePath string, value interface{}, priority int) error {
	if existing, ok := c.Sources[field]; ok && existing.Priority < priority {
		return nil
	}

	switch field {
	case "host":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("host must be a string, got %T", value)
		}
		c.Host = v
	case "port":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("port must be an integer, got %v", value)
		}
		if v < 1 || v > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", v)
		}
		c.Port = v
	case "debug":
		v, ok := toBool(value)
		if !ok {
			return fmt.Errorf("debug must be a boolean, got %v", value)
		}
		c.Debug = v
	case "watch":
		v, ok := toBool(value)
		if !ok {
			return fmt.Errorf("watch must be a boolean, got %v", value)
		}
		c.Watch = v
	case "log_level":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("log_level must be a string, got %T", value)
		}
		if _, err := log.ParseLevel(v); err != nil {
			return fmt.Errorf("invalid log level %q: %w", v, err)
		}
		c.LogLevel = v
	case "wtt_path":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("wtt_path must be a string, got %T", value)
		}
		c.WTTPath = v
	case "summary_path":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("summary_path must be a string, got %T", value)
		}
		c.SummaryPath = v
	default:
		return fmt.Errorf("unknown config field: %s", field)
	}

	c.Sources[field] = Source{Source: source, SourcePath: sourcePath, Priority: priority}
	return nil
}

// applyFile reads a yaml config file. A missing file is not an error.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw struct {
		Host        *string `yaml:"host"`
		Port        *int    `yaml:"port"`
		Debug       *bool   `yaml:"debug"`
		Watch       *bool   `yaml:"watch"`
		LogLevel    *string `yaml:"log_level"`
		WTTPath     *string `yaml:"wtt_path"`
		SummaryPath *string `yaml:"summary_path"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	set := func(field string, value interface{}) error {
		return c.Set(field, "file", path, value, PriorityFile)
	}
	if raw.Host != nil {
		if err := set("host", *raw.Host); err != nil {
			return err
		}
	}
	if raw.Port != nil {
		if err := set("port", *raw.Port); err != nil {
			return err
		}
	}
	if raw.Debug != nil {
		if err := set("debug", *raw.Debug); err != nil {
			return err
		}
	}
	if raw.Watch != nil {
		if err := set("watch", *raw.Watch); err != nil {
			return err
		}
	}
	if raw.LogLevel != nil {
		if err := set("log_level", *raw.LogLevel); err != nil {
			return err
		}
	}
	if raw.WTTPath != nil {
		if err := set("wtt_path", *raw.WTTPath); err != nil {
			return err
		}
	}
	if raw.SummaryPath != nil {
		if err := set("summary_path", *raw.SummaryPath); err != nil {
			return err
		}
	}

	log.Debug("loaded config file", "path", path)
	return nil
}

// applyEnv reads GARDI_* environment variables. Malformed values are
// skipped rather than fatal.
func (c *Config) applyEnv() {
	add := func(key, field string, convert func(string) (interface{}, bool)) {
		raw := os.Getenv(key)
		if raw == "" {
			return
		}
		value := interface{}(raw)
		if convert != nil {
			v, ok := convert(raw)
			if !ok {
				log.Warn("ignoring malformed environment variable", "var", key, "value", raw)
				return
			}
			value = v
		}
		if err := c.Set(field, "env", key, value, PriorityEnv); err != nil {
			log.Warn("ignoring environment variable", "var", key, "err", err)
		}
	}

	toIntConv := func(s string) (interface{}, bool) {
		i, err := strconv.Atoi(s)
		return i, err == nil
	}
	toBoolConv := func(s string) (interface{}, bool) {
		b, err := strconv.ParseBool(s)
		return b, err == nil
	}

	add("GARDI_HOST", "host", nil)
	add("GARDI_PORT", "port", toIntConv)
	add("GARDI_DEBUG", "debug", toBoolConv)
	add("GARDI_WATCH", "watch", toBoolConv)
	add("GARDI_LOG_LEVEL", "log_level", nil)
	add("GARDI_WTT_PATH", "wtt_path", nil)
	add("GARDI_SUMMARY_PATH", "summary_path", nil)
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func toInt(x interface{}) (int, bool) {
	switch t := x.(type) {
	case int:
		return t, true
	case string:
		if i, err := strconv.Atoi(t); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toBool(x interface{}) (bool, bool) {
	switch t := x.(type) {
	case bool:
		return t, true
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b, true
		}
	}
	return false, false
}
