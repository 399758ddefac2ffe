// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import "time"

// DefaultSessionID is the conversation id the backend uses when the client
// does not ask for a fresh one.
const DefaultSessionID = "default_session"

type DocuMindConfig struct {
	// Server: where the DocuMind API lives
	Server ServerConfig `yaml:"server"`

	// Chat: streaming chat behaviour
	Chat ChatConfig `yaml:"chat"`

	// Models: model discovery cache
	Models ModelsConfig `yaml:"models"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	UX        UXConfig        `yaml:"ux"`
}

type ServerConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"` // e.g. http://localhost:8000
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`         // side-channel requests; chat streams use StreamIdleTimeout
}

type ChatConfig struct {
	SessionID string `yaml:"session_id" validate:"required"`

	// PreferredModelMarker picks the default model: the first listed name
	// containing it wins.
	PreferredModelMarker string `yaml:"preferred_model_marker"`

	// Model pins a model and skips the default selection.
	Model string `yaml:"model,omitempty"`

	// StreamIdleTimeout aborts a stream that produces no bytes for this
	// long. Zero disables the watchdog.
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout" validate:"gte=0"`

	ChunkSize int `yaml:"chunk_size" validate:"gte=0"`
}

type ModelsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON       bool   `yaml:"json"`
	Dir        string `yaml:"dir,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

type TelemetryConfig struct {
	// TraceExporter is "none", "stdout" or "otlp".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`

	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

type UXConfig struct {
	Personality string `yaml:"personality" validate:"oneof=full standard minimal machine"`
	Markdown    bool   `yaml:"markdown"`
}

func DefaultConfig() DocuMindConfig {
	return DocuMindConfig{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 2 * time.Minute,
		},
		Chat: ChatConfig{
			SessionID:            DefaultSessionID,
			PreferredModelMarker: "llama3",
			StreamIdleTimeout:    2 * time.Minute,
			ChunkSize:            4096,
		},
		Models: ModelsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			OTLPEndpoint:  "localhost:4317",
			OTLPInsecure:  true,
		},
		UX: UXConfig{
			Personality: "full",
		},
	}
}
