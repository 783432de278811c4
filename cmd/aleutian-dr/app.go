// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/config"
	"github.com/AleutianAI/AleutianDR/internal/journal"
	"github.com/AleutianAI/AleutianDR/internal/recovery"
	"github.com/AleutianAI/AleutianDR/internal/store"
	"github.com/AleutianAI/AleutianDR/internal/telemetry"
	"github.com/AleutianAI/AleutianDR/pkg/logging"
	"github.com/AleutianAI/AleutianDR/pkg/ux"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// streams are the process's standard streams, swapped out in tests.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func stdStreams() streams {
	return streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// flagKeys maps persistent flags to the config keys they override.
var flagKeys = map[string]string{
	"url":         "store.url",
	"backend":     "store.backend",
	"backup-root": "backup.root",
	"log-level":   "logging.level",
}

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg      config.Config
	cfgPath  string
	streams  streams
	printer  *ux.Printer
	log      *logging.Logger
	logger   *slog.Logger
	store    *store.Client
	catalog  *catalog.Catalog
	journal  *journal.Journal
	metrics  *recovery.PrometheusMetrics
	shutdown func(context.Context) error
}

// newApp loads configuration and wires the store client, catalog, journal,
// metrics and tracing for one command.
func newApp(cmd *cobra.Command, root *rootOptions, s streams) (*app, error) {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		flags[key] = cmd.Flags().Lookup(name)
	}
	res, err := config.Load(config.LoadOptions{Path: root.configPath, CreateIfMissing: true, Flags: flags})
	if err != nil {
		return nil, err
	}
	cfg := res.Config

	level := ux.DetectLevel(asFile(s.out))
	if root.output != "" {
		level = ux.ParseLevel(root.output)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	log := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  cfg.Logging.Dir,
		Service: "aleutian-dr",
		JSON:    cfg.Logging.JSON,
		Output:  s.errOut,
	})
	logger := log.Slog()
	if res.Created {
		logger.Info("created default configuration", slog.String("path", res.Path))
	}

	a := &app{
		cfg:      cfg,
		cfgPath:  res.Path,
		streams:  s,
		printer:  ux.NewPrinter(s.out, level),
		log:      log,
		logger:   logger,
		shutdown: func(context.Context) error { return nil },
	}

	a.store, err = store.NewClient(store.ClientConfig{
		URL:            cfg.Store.URL,
		Backend:        cfg.Store.Backend,
		RequestTimeout: cfg.Store.RequestTimeout,
		RetryAttempts:  cfg.Store.RetryAttempts,
		Logger:         logger,
	})
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	if cfg.Backup.Root != "" {
		a.catalog = catalog.New(cfg.Backup.Root, logger)
	}

	if cfg.Journal.Enabled {
		jcfg := journal.DefaultConfig(cfg.Journal.Path)
		jcfg.MaxEntries = cfg.Journal.MaxEntries
		jcfg.Logger = logger
		j, err := journal.Open(jcfg)
		if err != nil {
			logger.Warn("run journal unavailable, continuing without history",
				slog.String("path", cfg.Journal.Path), slog.String("error", err.Error()))
		} else {
			a.journal = j
		}
	}

	a.metrics, err = recovery.NewPrometheusMetrics()
	if err != nil {
		a.close(cmd.Context())
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Output = s.errOut
	if cfg.Telemetry.Tracing {
		tcfg.TraceExporter = telemetry.ExporterStdout
	}
	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		a.close(cmd.Context())
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return a, nil
}

// controller builds a Controller polling with poll.
func (a *app) controller(poll recovery.PollConfig) *recovery.Controller {
	return recovery.NewController(a.store, recovery.Options{
		Poll:              poll,
		CensusParallelism: a.cfg.Census.Parallelism,
		PrimaryCollection: a.cfg.Restore.PrimaryCollection,
		BackupPrefix:      a.cfg.Backup.Prefix,
		Backend:           a.cfg.Store.Backend,
		Catalog:           a.catalog,
		Metrics:           a.metrics,
		Logger:            a.logger,
	})
}

func (a *app) backupPoll() recovery.PollConfig {
	return recovery.PollConfig{Interval: a.cfg.Backup.PollInterval, MaxAttempts: a.cfg.Backup.MaxAttempts}
}

func (a *app) restorePoll() recovery.PollConfig {
	return recovery.PollConfig{Interval: a.cfg.Restore.PollInterval, MaxAttempts: a.cfg.Restore.MaxAttempts}
}

// prompter returns an interactive prompter only when stdin is a terminal.
func (a *app) prompter() recovery.Prompter {
	if f := asFile(a.streams.in); f != nil && term.IsTerminal(int(f.Fd())) {
		return recovery.NewInteractivePrompterWithIO(a.streams.in, a.streams.out)
	}
	return recovery.NewNonInteractivePrompter()
}

// record appends a run to the journal. Failures are logged only.
func (a *app) record(ctx context.Context, e journal.Entry) {
	if a.journal == nil {
		return
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	if _, err := a.journal.Append(context.WithoutCancel(ctx), e); err != nil {
		a.logger.Warn("failed to record run in journal", slog.String("error", err.Error()))
	}
}

// close flushes metrics and traces and releases the journal and log file.
func (a *app) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if a.metrics != nil && a.cfg.Telemetry.MetricsTextfile != "" {
		if err := telemetry.WriteMetricsTextfile(a.cfg.Telemetry.MetricsTextfile, a.metrics.Gatherer()); err != nil {
			a.logger.Warn("failed to write metrics", slog.String("error", err.Error()))
		}
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", slog.String("error", err.Error()))
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", slog.String("error", err.Error()))
		}
	}
	_ = a.log.Close()
}

func asFile(v any) *os.File {
	f, _ := v.(*os.File)
	return f
}
