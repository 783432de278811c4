// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. ALEUTIAN_DR_STORE_URL.
	EnvPrefix = "ALEUTIAN_DR"

	configDirName  = ".aleutian-dr"
	configFileName = "config.yaml"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadOptions controls Load.
type LoadOptions struct {
	// Path overrides the default config location.
	Path string

	// CreateIfMissing writes DefaultConfig to Path on first run.
	CreateIfMissing bool

	// Flags maps config keys (e.g. "store.url") to command-line flags.
	// A flag overrides file and environment only when the user set it.
	Flags map[string]*pflag.Flag
}

// Result is a loaded configuration and where it came from.
type Result struct {
	Config  Config
	Path    string
	Created bool
}

// DefaultPath returns ~/.aleutian-dr/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load reads the configuration.
//
// # Description
//
// Precedence, highest first: explicitly set flags, ALEUTIAN_DR_* environment
// variables, the YAML file, DefaultConfig. On first run the file is
// created with defaults when CreateIfMissing is set. The result is
// validated and "~" is expanded in path fields.
//
// # Outputs
//
//   - *Result: The merged configuration.
//   - error: Read, parse or validation failure. Validation errors wrap
//     ErrInvalidConfig.
func Load(opts LoadOptions) (*Result, error) {
	path := opts.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	res := &Result{Path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && opts.CreateIfMissing {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		res.Created = true
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	res.Config = cfg
	return res, nil
}

// setDefaults registers every key so environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.url", d.Store.URL)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.request_timeout", d.Store.RequestTimeout)
	v.SetDefault("store.retry_attempts", d.Store.RetryAttempts)
	v.SetDefault("backup.root", d.Backup.Root)
	v.SetDefault("backup.prefix", d.Backup.Prefix)
	v.SetDefault("backup.poll_interval", d.Backup.PollInterval)
	v.SetDefault("backup.max_attempts", d.Backup.MaxAttempts)
	v.SetDefault("restore.poll_interval", d.Restore.PollInterval)
	v.SetDefault("restore.max_attempts", d.Restore.MaxAttempts)
	v.SetDefault("restore.primary_collection", d.Restore.PrimaryCollection)
	v.SetDefault("census.parallelism", d.Census.Parallelism)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("journal.max_entries", d.Journal.MaxEntries)
	v.SetDefault("telemetry.metrics_textfile", d.Telemetry.MetricsTextfile)
	v.SetDefault("telemetry.tracing", d.Telemetry.Tracing)
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	header := []byte("# aleutian-dr configuration. Environment variables ALEUTIAN_DR_<SECTION>_<KEY> override these values.\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

var backupIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("backupid", func(fl validator.FieldLevel) bool {
		return backupIDPattern.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg and returns every violation in one error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Backup.Root, &c.Journal.Path, &c.Logging.Dir, &c.Telemetry.MetricsTextfile} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandPath replaces a leading "~" with the home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
