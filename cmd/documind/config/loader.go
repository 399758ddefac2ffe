// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvBaseURL   = "DOCUMIND_BASE_URL"
	EnvModel     = "DOCUMIND_MODEL"
	EnvSessionID = "DOCUMIND_SESSION_ID"
	EnvLogLevel  = "DOCUMIND_LOG_LEVEL"
	EnvTraces    = "OTEL_TRACES_EXPORTER"
	EnvOTLP      = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

var validate = validator.New()

// DefaultPath returns ~/.documind/documind.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".documind", "documind.yaml"), nil
}

// Load reads the config at path, creating it with defaults on first run.
// An empty path means DefaultPath. Keys missing from the file keep their
// default values. Notices about first-run creation go to notice, which may
// be nil.
func Load(path string, notice io.Writer) (DocuMindConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return DocuMindConfig{}, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if notice != nil {
			fmt.Fprintf(notice, " First run detected, creating the config at %s\n", path)
		}
		if err := createDefault(path); err != nil {
			return DocuMindConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DocuMindConfig{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (DocuMindConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DocuMindConfig{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return DocuMindConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func Validate(cfg DocuMindConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *DocuMindConfig) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv(EnvSessionID); v != "" {
		cfg.Chat.SessionID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvTraces); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := os.Getenv(EnvOTLP); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

func createDefault(path string) error {
	return Save(path, DefaultConfig())
}

// Update applies mutate to the file at path and writes it back.
// Environment overrides are not applied, so they never leak into the
// file.
func Update(path string, mutate func(*DocuMindConfig)) error {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse the config: %w", err)
	}
	mutate(&cfg)
	return Save(path, cfg)
}

// Save validates cfg and writes it to path, creating the directory.
func Save(path string, cfg DocuMindConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode the config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// RequestTimeout returns the side-channel timeout, falling back to one
// minute when unset.
func (c DocuMindConfig) RequestTimeout() time.Duration {
	if c.Server.Timeout <= 0 {
		return time.Minute
	}
	return c.Server.Timeout
}
