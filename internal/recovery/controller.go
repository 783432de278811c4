// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/store"
)

// =============================================================================
// Options
// =============================================================================

// Options configures a Controller. Zero values take defaults.
type Options struct {
	// Poll bounds backup and restore status loops.
	Poll PollConfig

	// CensusParallelism bounds concurrent count queries.
	CensusParallelism int

	// PrimaryCollection is verified by document count.
	// Default: VERBA_DOCUMENTS
	PrimaryCollection string

	// BackupPrefix prefixes generated backup ids.
	// Default: verba-backup
	BackupPrefix string

	// Backend is recorded in manifests.
	// Default: filesystem
	Backend string

	// Catalog, when set, receives manifests and the latest pointer and
	// supplies recorded expectations to the verifier.
	Catalog *catalog.Catalog

	Clock   Clock
	Metrics Metrics
	Logger  *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Poll.Interval == 0 && o.Poll.MaxAttempts == 0 {
		o.Poll = DefaultPollConfig()
	}
	if o.Poll.MaxAttempts < 1 {
		o.Poll.MaxAttempts = DefaultPollConfig().MaxAttempts
	}
	if o.CensusParallelism < 1 {
		o.CensusParallelism = DefaultCensusParallelism
	}
	if o.PrimaryCollection == "" {
		o.PrimaryCollection = DefaultPrimaryCollection
	}
	if o.BackupPrefix == "" {
		o.BackupPrefix = DefaultBackupPrefix
	}
	if o.Backend == "" {
		o.Backend = store.DefaultBackend
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Metrics == nil {
		o.Metrics = NoOpMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// =============================================================================
// Reports
// =============================================================================

// Mode names how a restore was invoked.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeForced      Mode = "forced"
	ModeDryRun      Mode = "dry-run"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageCensus  Stage = "census"
	StageGate    Stage = "gate"
	StageCleanup Stage = "cleanup"
	StageRestore Stage = "restore"
	StageVerify  Stage = "verify"
	StageDone    Stage = "done"
)

// RestoreRequest is one restore invocation.
type RestoreRequest struct {
	BackupID string

	// Expect overrides recorded expectations field by field.
	Expect Expectations
}

// RestoreReport records what a restore run did. It is returned even when
// the run fails; Stage names the stage that was running at the time.
type RestoreReport struct {
	BackupID     string
	Mode         Mode
	Stage        Stage
	Census       Census
	Assessment   Assessment
	Deleted      []string
	Restore      *RestoreOutcome
	Verification *VerificationResult
	StartedAt    time.Time
	Elapsed      time.Duration
}

// =============================================================================
// Controller
// =============================================================================

// Controller runs the backup and restore flows against one store.
//
// # Description
//
// The restore pipeline is Census -> Classify -> Gate -> Cleanup -> Restore
// -> Verify. Interactive and forced restores are separate methods; no
// option or flag on a request can turn an interactive restore into a
// forced one.
type Controller struct {
	store    Store
	opts     Options
	cleanup  *CleanupExecutor
	restorer *RestoreOrchestrator
	verifier *Verifier
	backup   *BackupCreator
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewController creates a controller.
func NewController(st Store, opts Options) *Controller {
	opts.applyDefaults()
	logger := opts.Logger.With(slog.String("component", "controller"))
	return &Controller{
		store:    st,
		opts:     opts,
		cleanup:  NewCleanupExecutor(st, opts.Logger),
		restorer: NewRestoreOrchestrator(st, opts.Poll, opts.Clock, opts.Logger),
		verifier: NewVerifier(st, opts.Logger),
		backup: &BackupCreator{
			store:       st,
			catalog:     opts.Catalog,
			poller:      &poller{config: opts.Poll, clock: opts.Clock, logger: opts.Logger.With(slog.String("component", "backup"))},
			clock:       opts.Clock,
			prefix:      opts.BackupPrefix,
			backend:     opts.Backend,
			primary:     opts.PrimaryCollection,
			parallelism: opts.CensusParallelism,
			logger:      opts.Logger.With(slog.String("component", "backup")),
		},
		logger: logger,
		tracer: otel.Tracer("aleutian-dr/recovery"),
	}
}

// Census takes a census of the store without classifying it.
func (c *Controller) Census(ctx context.Context) (Census, error) {
	return TakeCensus(ctx, c.store, c.opts.CensusParallelism, c.logger, c.opts.Clock)
}

// RestoreInteractive runs the restore pipeline with operator confirmation.
//
// # Inputs
//
//   - ctx: Cancellation. Cancelling during polling stops the controller but
//     does not cancel the job inside the store.
//   - req: Backup id and optional expectations.
//   - prompter: Asks the operator. A NonInteractivePrompter always declines.
//   - out: Receives the at-risk collection listing.
//
// # Outputs
//
//   - *RestoreReport: Always non-nil.
//   - error: nil only when the restore succeeded and verification matched.
func (c *Controller) RestoreInteractive(ctx context.Context, req RestoreRequest, prompter Prompter, out io.Writer) (*RestoreReport, error) {
	return c.restore(ctx, req, ModeInteractive, NewInteractiveGate(prompter, out, c.opts.Logger))
}

// RestoreForced runs the restore pipeline without confirmation. It is meant
// for pre-authorized unattended recovery.
func (c *Controller) RestoreForced(ctx context.Context, req RestoreRequest) (*RestoreReport, error) {
	return c.restore(ctx, req, ModeForced, forcedGate{logger: c.logger})
}

// Plan runs Census and Classify only and reports what a restore would
// delete. It has no side effects.
func (c *Controller) Plan(ctx context.Context, req RestoreRequest) (*RestoreReport, error) {
	report := &RestoreReport{BackupID: req.BackupID, Mode: ModeDryRun, Stage: StageCensus, StartedAt: c.opts.Clock.Now()}
	defer func() { report.Elapsed = c.opts.Clock.Now().Sub(report.StartedAt) }()

	if err := catalog.ValidateID(req.BackupID); err != nil {
		return report, err
	}
	census, err := c.Census(ctx)
	if err != nil {
		return report, err
	}
	report.Census = census
	report.Assessment = Classify(census)
	report.Stage = StageDone
	return report, nil
}

func (c *Controller) restore(ctx context.Context, req RestoreRequest, mode Mode, gate Gate) (report *RestoreReport, err error) {
	report = &RestoreReport{BackupID: req.BackupID, Mode: mode, StartedAt: c.opts.Clock.Now()}
	logger := c.logger.With(slog.String("backup_id", req.BackupID), slog.String("mode", string(mode)))

	ctx, span := c.tracer.Start(ctx, "recovery.Restore", trace.WithAttributes(
		attribute.String("backup.id", req.BackupID),
		attribute.String("restore.mode", string(mode)),
	))
	defer func() {
		report.Elapsed = c.opts.Clock.Now().Sub(report.StartedAt)
		span.SetAttributes(attribute.String("restore.stage", string(report.Stage)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.opts.Metrics.RecordRun("restore", Outcome(err), report.Elapsed)
		if err != nil {
			logger.Error("restore did not complete cleanly",
				slog.String("stage", string(report.Stage)),
				slog.String("outcome", Outcome(err)),
				slog.String("error", err.Error()))
		}
	}()

	if err := catalog.ValidateID(req.BackupID); err != nil {
		return report, err
	}

	// Census and classify.
	report.Stage = StageCensus
	census, err := stageSpan(ctx, c.tracer, StageCensus, func(ctx context.Context) (Census, error) {
		return TakeCensus(ctx, c.store, c.opts.CensusParallelism, c.opts.Logger, c.opts.Clock)
	})
	if err != nil {
		return report, err
	}
	report.Census = census
	report.Assessment = Classify(census)
	logger.Info("census complete",
		slog.Int("collections", len(report.Assessment.Blocking)),
		slog.Bool("has_data", report.Assessment.HasData))

	// Gate.
	report.Stage = StageGate
	if err := gate.Authorize(ctx, req.BackupID, report.Assessment); err != nil {
		return report, err
	}

	// Cleanup.
	report.Stage = StageCleanup
	if !report.Assessment.Clear() {
		deleted, err := stageSpan(ctx, c.tracer, StageCleanup, func(ctx context.Context) ([]string, error) {
			return c.cleanup.Execute(ctx, report.Assessment.Blocking)
		})
		report.Deleted = deleted
		c.opts.Metrics.RecordCollectionsDeleted(len(deleted))
		if err != nil {
			return report, err
		}
	}

	// Restore.
	report.Stage = StageRestore
	outcome, err := stageSpan(ctx, c.tracer, StageRestore, func(ctx context.Context) (*RestoreOutcome, error) {
		return c.restorer.Run(ctx, req.BackupID)
	})
	report.Restore = outcome
	var jobErr *JobError
	switch {
	case err == nil:
		c.opts.Metrics.RecordPollAttempts("restore", outcome.Attempts)
	case errors.As(err, &jobErr):
		c.opts.Metrics.RecordPollAttempts("restore", jobErr.Attempts)
	}
	if err != nil {
		return report, err
	}

	// Verify.
	report.Stage = StageVerify
	exp := c.expectations(req, outcome, logger)
	result, err := stageSpan(ctx, c.tracer, StageVerify, func(ctx context.Context) (VerificationResult, error) {
		return c.verifier.Verify(ctx, exp)
	})
	if err != nil {
		return report, err
	}
	report.Verification = &result
	c.opts.Metrics.RecordVerification(result.Matched)

	report.Stage = StageDone
	if !result.Matched {
		return report, fmt.Errorf("%w: %s", ErrVerificationMismatch, strings.Join(result.Mismatches, "; "))
	}
	return report, nil
}

// stageSpan runs fn in a child span named after the stage.
func stageSpan[T any](ctx context.Context, tracer trace.Tracer, name Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "recovery."+string(name))
	defer span.End()
	v, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

// expectations resolves verifier expectations: request fields first, then
// the manifest recorded at backup time, then the restore job's class list.
func (c *Controller) expectations(req RestoreRequest, outcome *RestoreOutcome, logger *slog.Logger) Expectations {
	exp := req.Expect
	var sources []string
	if exp.Documents != nil || exp.Collections != nil {
		sources = append(sources, "flags")
	}

	var manifest *catalog.Manifest
	if c.opts.Catalog != nil && (exp.Documents == nil || exp.Collections == nil) {
		m, err := c.opts.Catalog.ReadManifest(req.BackupID)
		switch {
		case err == nil:
			manifest = m
		case errors.Is(err, catalog.ErrNoManifest):
			logger.Debug("no manifest recorded for backup")
		default:
			logger.Warn("manifest unreadable, ignoring", slog.String("error", err.Error()))
		}
	}

	if exp.PrimaryCollection == "" {
		exp.PrimaryCollection = c.opts.PrimaryCollection
		if manifest != nil && manifest.PrimaryCollection != "" {
			exp.PrimaryCollection = manifest.PrimaryCollection
		}
	}

	if manifest != nil {
		used := false
		if exp.Documents == nil {
			if n, ok := manifest.DocumentCount(exp.PrimaryCollection); ok {
				exp.Documents = &n
				used = true
			}
		}
		if exp.Collections == nil && len(manifest.Collections) > 0 {
			n := len(manifest.Collections)
			exp.Collections = &n
			used = true
		}
		if used {
			sources = append(sources, "manifest")
		}
	}

	if exp.Collections == nil && outcome != nil {
		var classes []string
		if outcome.Final != nil {
			classes = outcome.Final.Collections
		}
		if len(classes) == 0 && outcome.Submitted != nil {
			classes = outcome.Submitted.Collections
		}
		if len(classes) > 0 {
			n := len(classes)
			exp.Collections = &n
			sources = append(sources, "restore job")
		}
	}

	exp.Source = strings.Join(sources, "+")
	return exp
}

// Backup creates a backup and records it in the catalog.
func (c *Controller) Backup(ctx context.Context) (rec *BackupRecord, err error) {
	start := c.opts.Clock.Now()
	ctx, span := c.tracer.Start(ctx, "recovery.Backup")
	defer func() {
		if rec != nil {
			span.SetAttributes(attribute.String("backup.id", rec.ID))
			if rec.Attempts > 0 {
				c.opts.Metrics.RecordPollAttempts("backup", rec.Attempts)
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.opts.Metrics.RecordRun("backup", Outcome(err), c.opts.Clock.Now().Sub(start))
	}()
	return c.backup.Create(ctx)
}
