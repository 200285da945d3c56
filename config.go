/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package otelfilter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the file form of a filter:
//
//	default_level: warn
//	directives:
//	  - db=info
//	  - http[request{user="admin"}]=debug
type Config struct {
	// DefaultLevel is the threshold used when no directive applies. Empty means error.
	DefaultLevel string `yaml:"default_level"`

	// Directives are joined with ',' and parsed as one filter string.
	Directives []string `yaml:"directives"`
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a Config from YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Spec returns the directives as one filter string.
func (c *Config) Spec() string {
	return strings.Join(c.Directives, ",")
}

// Filter builds the Filter described by c. opts are applied after the
// default level from c.
func (c *Config) Filter(opts ...FilterOption) (*Filter, error) {
	if c.DefaultLevel != "" {
		level, err := ParseLevel(c.DefaultLevel)
		if err != nil {
			return nil, fmt.Errorf("default_level: %w", err)
		}
		opts = append([]FilterOption{WithDefaultLevel(level)}, opts...)
	}

	return New(c.Spec(), opts...)
}
