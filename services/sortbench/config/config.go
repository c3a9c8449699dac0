// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads, validates, saves and watches the sortbench YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/AleutianAI/sortbench/services/sortbench/coordinator"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the directory under the user's home holding the config.
	DirName = ".sortbench"

	// FileName is the config file name.
	FileName = "sortbench.yaml"

	// DefaultSize is the default field width and height.
	DefaultSize = 1000
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk configuration.
type Config struct {
	Width          int       `yaml:"width" validate:"gte=1,lte=8192"`
	Height         int       `yaml:"height" validate:"gte=1,lte=8192"`
	Mode           string    `yaml:"mode" validate:"required,mode"`
	Variant        string    `yaml:"variant" validate:"required,variant"`
	Concurrency    int       `yaml:"concurrency"`
	ComparatorCost float64   `yaml:"comparator_cost" validate:"gte=0,lte=25"`
	Seed           uint64    `yaml:"seed"`
	FrameRate      float64   `yaml:"frame_rate" validate:"gte=0,lte=240"`
	BackendPath    string    `yaml:"backend_path,omitempty"`
	MetricsAddr    string    `yaml:"metrics_addr,omitempty" validate:"omitempty,listenaddr"`
	Trace          bool      `yaml:"trace"`
	Log            LogConfig `yaml:"log"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		_, err := dataset.ParseMode(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		_, err := gateway.ParseVariant(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("listenaddr", func(fl validator.FieldLevel) bool {
		_, _, err := net.SplitHostPort(fl.Field().String())
		return err == nil
	})
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Width:       DefaultSize,
		Height:      DefaultSize,
		Mode:        dataset.Random.String(),
		Variant:     gateway.Baseline.String(),
		Concurrency: runtime.NumCPU(),
		Seed:        dataset.DefaultSeed,
		FrameRate:   coordinator.DefaultFrameRate,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.sortbench/sortbench.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, DirName, FileName), nil
}

// Load reads the config at path, creating it with defaults if it does not
// exist. An empty path uses DefaultPath.
//
// Inputs:
//   - path: Config file path, or "".
//
// Outputs:
//   - *Config: The validated config.
//   - string: The resolved path.
//   - error: I/O, YAML or validation failure (wrapping ErrInvalidConfig).
func Load(path string) (*Config, string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Info("first run detected, creating the config", "path", path)
		if err := createDefault(path); err != nil {
			return nil, path, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to read the config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, path, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and names. Concurrency is never an error;
// it is clamped when converted to settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Save writes cfg to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func createDefault(path string) error {
	cfg := DefaultConfig()
	return Save(path, &cfg)
}

// Settings converts the config to coordinator settings.
func (c *Config) Settings() (coordinator.Settings, error) {
	mode, err := dataset.ParseMode(c.Mode)
	if err != nil {
		return coordinator.Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	variant, err := gateway.ParseVariant(c.Variant)
	if err != nil {
		return coordinator.Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return coordinator.Settings{
		Mode: mode,
		Params: coordinator.RunParameters{
			Variant:        variant,
			Concurrency:    c.Concurrency,
			ComparatorCost: c.ComparatorCost,
		}.Normalize(),
		Seed: c.Seed,
	}, nil
}
