// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads fsconvert settings from a config file, FSCONVERT_*
// environment variables and built-in defaults, and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fsconvert/pkg/types"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// FSCONVERT_COPY_MAX_ATTEMPTS=5.
	EnvPrefix = "FSCONVERT"

	// FileName is the config file base name searched for in "." and Dir().
	FileName = "fsconvert"
)

// Dir returns the per-user configuration directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fsconvert")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fsconvert")
}

// DefaultPath is where Init writes a fresh config file.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName+".yaml")
}

// Setup points v at the config file and environment. An empty cfgFile
// searches "." and Dir() for fsconvert.yaml.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// SetDefaults registers every key of types.DefaultConfig with v so that
// environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	for key, val := range flatten(types.DefaultConfig()) {
		v.SetDefault(key, val)
	}
}

// Read loads the config file if one exists. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Load unmarshals v into a Config, fills derived defaults and validates.
func Load(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills values that depend on the environment.
func ApplyDefaults(cfg *types.Config) {
	if cfg.Journal.Dir == "" {
		cfg.Journal.Dir = Dir()
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
}

// Render returns cfg as YAML with durations written as "2s", "1h0m0s".
func Render(cfg types.Config) ([]byte, error) {
	data, err := yaml.Marshal(toTree(reflect.ValueOf(cfg)))
	if err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := Render(types.DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

var durationType = reflect.TypeOf(time.Duration(0))

// flatten maps dotted mapstructure keys ("copy.max_attempts") to values.
func flatten(cfg types.Config) map[string]any {
	out := map[string]any{}
	var walk func(prefix string, v reflect.Value)
	walk = func(prefix string, v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			key := t.Field(i).Tag.Get("mapstructure")
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			f := v.Field(i)
			if f.Kind() == reflect.Struct {
				walk(key, f)
				continue
			}
			out[key] = f.Interface()
		}
	}
	walk("", reflect.ValueOf(cfg))
	return out
}

// toTree converts a config struct into nested maps keyed by yaml tag.
func toTree(v reflect.Value) any {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	if v.Kind() != reflect.Struct {
		return v.Interface()
	}
	node := yaml.Node{Kind: yaml.MappingNode}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		var val yaml.Node
		if err := val.Encode(toTree(v.Field(i))); err != nil {
			continue
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&val)
	}
	return &node
}
