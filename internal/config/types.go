// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the aleutian-dr configuration file.
package config

import "time"

// Config is the top-level configuration, stored at ~/.aleutian-dr/config.yaml.
type Config struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Restore   RestoreConfig   `mapstructure:"restore" yaml:"restore"`
	Census    CensusConfig    `mapstructure:"census" yaml:"census"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// StoreConfig points at the Weaviate instance.
type StoreConfig struct {
	URL            string        `mapstructure:"url" yaml:"url" validate:"required,url"`                                  // e.g. http://localhost:8080
	Backend        string        `mapstructure:"backend" yaml:"backend" validate:"required,oneof=filesystem s3 gcs azure"` // backup module
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	RetryAttempts  int           `mapstructure:"retry_attempts" yaml:"retry_attempts" validate:"gte=1,lte=10"`
}

// BackupConfig controls backup creation and the on-disk catalog.
type BackupConfig struct {
	// Root is the host path of the store's filesystem backup directory.
	// Empty disables manifests, the latest pointer and `list`.
	Root         string        `mapstructure:"root" yaml:"root"`
	Prefix       string        `mapstructure:"prefix" yaml:"prefix" validate:"required,backupid"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gte=0"`
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
}

// RestoreConfig controls the restore pipeline.
type RestoreConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gte=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	PrimaryCollection string        `mapstructure:"primary_collection" yaml:"primary_collection" validate:"required"`
}

// CensusConfig bounds census parallelism.
type CensusConfig struct {
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism" validate:"gte=1,lte=64"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `mapstructure:"dir" yaml:"dir"` // JSON file logs; empty disables
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// JournalConfig controls the local run history.
type JournalConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=0"`
}

// TelemetryConfig controls metrics and tracing output.
type TelemetryConfig struct {
	// MetricsTextfile is written at exit in node-exporter textfile format.
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile"`
	// Tracing prints spans to stderr.
	Tracing bool `mapstructure:"tracing" yaml:"tracing"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			URL:            "http://localhost:8080",
			Backend:        "filesystem",
			RequestTimeout: 30 * time.Second,
			RetryAttempts:  3,
		},
		Backup: BackupConfig{
			Root:         "~/.aleutian-dr/backups",
			Prefix:       "verba-backup",
			PollInterval: 10 * time.Second,
			MaxAttempts:  30,
		},
		Restore: RestoreConfig{
			PollInterval:      10 * time.Second,
			MaxAttempts:       30,
			PrimaryCollection: "VERBA_DOCUMENTS",
		},
		Census: CensusConfig{
			Parallelism: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Journal: JournalConfig{
			Enabled:    true,
			Path:       "~/.aleutian-dr/journal",
			MaxEntries: 500,
		},
	}
}
