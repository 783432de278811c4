// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides a typed Weaviate client for the recovery controller.
//
// Features:
//   - Schema listing, aggregate counts and idempotent class deletion
//   - Backup and restore submission plus status polling primitives
//   - Bounded per-request timeout on every call
//   - Retry with exponential backoff and jitter for read-only calls only
//   - Transport failures reported as ErrStoreUnreachable, distinct from
//     empty results and from store-side rejections
//   - OpenTelemetry spans per call
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBackend is the Weaviate backup module used when none is configured.
const DefaultBackend = "filesystem"

// -----------------------------------------------------------------------------
// Client Configuration
// -----------------------------------------------------------------------------

// ClientConfig configures the store client.
type ClientConfig struct {
	// URL is the Weaviate endpoint (e.g., "http://localhost:8080").
	URL string

	// Backend is the backup module name.
	// Default: "filesystem"
	Backend string

	// RequestTimeout bounds every single HTTP call, independent of any
	// polling budget held by the caller.
	// Default: 30s
	RequestTimeout time.Duration

	// RetryAttempts is the number of extra attempts for read-only calls.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the initial backoff between read-only retries.
	// Default: 200ms
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff.
	// Default: 5s
	MaxRetryBackoff time.Duration

	// RetryJitter adds randomness to backoff (0.0-1.0).
	// Default: 0.25
	RetryJitter float64

	// HTTPClient overrides the transport. Its Timeout is replaced by
	// RequestTimeout.
	HTTPClient *http.Client

	// Logger for client operations.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultClientConfig returns defaults suitable for a local Verba deployment.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:             "http://localhost:8080",
		Backend:         DefaultBackend,
		RequestTimeout:  30 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    200 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
		RetryJitter:     0.25,
		Logger:          slog.Default(),
	}
}

// Validate checks if the configuration is usable.
func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry_attempts must be non-negative")
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		return errors.New("retry_jitter must be between 0 and 1")
	}
	return nil
}

func (c *ClientConfig) applyDefaults() {
	defaults := DefaultClientConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client is the typed wire client over the Weaviate HTTP API.
//
// Thread Safety: Safe for concurrent use; the census issues counts in parallel.
type Client struct {
	client *weaviate.Client
	config ClientConfig
	logger *slog.Logger
	tracer trace.Tracer
}

// NewClient creates a store client. It performs no network I/O.
//
// Inputs:
//
//	config - Client configuration. URL is required.
//
// Outputs:
//
//	*Client - Ready-to-use client.
//	error - Non-nil if the configuration is invalid.
func NewClient(config ClientConfig) (*Client, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	u, err := url.Parse(config.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid config: url %q must include scheme and host", config.URL)
	}

	httpClient := &http.Client{}
	if config.HTTPClient != nil {
		copied := *config.HTTPClient
		httpClient = &copied
	}
	httpClient.Timeout = config.RequestTimeout

	wc, err := weaviate.NewClient(weaviate.Config{
		Host:             u.Host,
		Scheme:           u.Scheme,
		ConnectionClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Client{
		client: wc,
		config: config,
		logger: config.Logger.With(slog.String("component", "store_client")),
		tracer: otel.Tracer("aleutian-dr/store"),
	}, nil
}

// Backend returns the configured backup backend name.
func (c *Client) Backend() string {
	return c.config.Backend
}

// Ready probes the store's readiness endpoint.
func (c *Client) Ready(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "store.Ready")
	defer span.End()

	var ready bool
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ready, err = c.client.Misc().ReadyChecker().Do(ctx)
		return err
	})
	if err != nil {
		return c.fail(span, classifyError("ready", err))
	}
	if !ready {
		return c.fail(span, &RequestError{Op: "ready", StatusCode: http.StatusServiceUnavailable,
			Message: "store reports not ready", Kind: ErrStoreUnreachable})
	}
	span.SetStatus(codes.Ok, "ready")
	return nil
}

// ListCollections returns the names of all collections, sorted.
//
// An empty schema yields an empty slice and a nil error; a transport
// failure yields ErrStoreUnreachable. The two are never conflated.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := c.startSpan(ctx, "store.ListCollections")
	defer span.End()

	var names []string
	err := c.retryRead(ctx, "list_collections", func(ctx context.Context) error {
		dump, err := c.client.Schema().Getter().Do(ctx)
		if err != nil {
			return classifyError("list_collections", err)
		}
		names = names[:0]
		if dump != nil {
			for _, class := range dump.Classes {
				if class != nil && class.Class != "" {
					names = append(names, class.Class)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, c.fail(span, err)
	}

	sort.Strings(names)
	span.SetAttributes(attribute.Int("collections", len(names)))
	return names, nil
}

// CountObjects returns the number of objects in a collection.
//
// Any malformed aggregate response returns CountUnknown together with an
// error wrapping ErrSchemaQueryFailed. Transport failures return
// CountUnknown with ErrStoreUnreachable.
func (c *Client) CountObjects(ctx context.Context, name string) (ObjectCount, error) {
	ctx, span := c.startSpan(ctx, "store.CountObjects", attribute.String("collection", name))
	defer span.End()

	count := CountUnknown
	err := c.retryRead(ctx, "count_objects", func(ctx context.Context) error {
		resp, err := c.client.GraphQL().Aggregate().
			WithClassName(name).
			WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
			Do(ctx)
		if err != nil {
			classified := classifyError("count_objects", err)
			if errors.Is(classified, ErrStoreUnreachable) {
				return classified
			}
			return fmt.Errorf("%w: %s: %w", ErrSchemaQueryFailed, name, classified)
		}
		count, err = parseAggregateCount(resp, name)
		return err
	})
	if err != nil {
		return CountUnknown, c.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("count", int64(count)))
	return count, nil
}

// DeleteCollection removes a collection and all its objects.
//
// Deleting a collection that does not exist succeeds.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	ctx, span := c.startSpan(ctx, "store.DeleteCollection", attribute.String("collection", name))
	defer span.End()

	err := c.withTimeout(ctx, func(ctx context.Context) error {
		return c.client.Schema().ClassDeleter().WithClassName(name).Do(ctx)
	})
	if err != nil {
		classified := classifyError("delete_collection", err)
		if errors.Is(classified, ErrNotFound) {
			c.logger.Debug("collection already absent", slog.String("collection", name))
			return nil
		}
		return c.fail(span, classified)
	}

	c.logger.Info("collection deleted", slog.String("collection", name))
	return nil
}

// CreateBackup submits a backup job and returns immediately.
//
// A rejection (for example an id already in flight) is surfaced verbatim.
func (c *Client) CreateBackup(ctx context.Context, id string) (*Job, error) {
	ctx, span := c.startSpan(ctx, "store.CreateBackup", attribute.String("backup_id", id))
	defer span.End()

	var job *Job
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		resp, err := c.client.Backup().Creator().
			WithBackend(c.config.Backend).
			WithBackupID(id).
			WithWaitForCompletion(false).
			Do(ctx)
		if err != nil {
			return err
		}
		job = &Job{ID: resp.ID, Backend: resp.Backend, RawStatus: deref(resp.Status),
			Error: resp.Error, Collections: resp.Classes, Path: resp.Path}
		return nil
	})
	if err != nil {
		return nil, c.fail(span, classifyError("create_backup", err))
	}
	return c.finishJob(job, id), nil
}

// BackupStatus returns the current state of a backup job.
//
// A missing record is ErrNotFound, never StatusFailed.
func (c *Client) BackupStatus(ctx context.Context, id string) (*Job, error) {
	ctx, span := c.startSpan(ctx, "store.BackupStatus", attribute.String("backup_id", id))
	defer span.End()

	var job *Job
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		resp, err := c.client.Backup().CreateStatusGetter().
			WithBackend(c.config.Backend).
			WithBackupID(id).
			Do(ctx)
		if err != nil {
			return err
		}
		job = &Job{ID: resp.ID, Backend: resp.Backend, RawStatus: deref(resp.Status),
			Error: resp.Error, Path: resp.Path}
		return nil
	})
	if err != nil {
		return nil, c.fail(span, classifyError("backup_status", err))
	}
	return c.finishJob(job, id), nil
}

// SubmitRestore submits a restore job for a backup and returns immediately.
//
// Precondition: no collection contained in the backup may exist in the
// store. Weaviate refuses the restore outright on a name collision, so
// callers must run the census and cleanup stages first. A backup id the
// store does not know surfaces here as an error, not in a later poll.
func (c *Client) SubmitRestore(ctx context.Context, id string) (*Job, error) {
	ctx, span := c.startSpan(ctx, "store.SubmitRestore", attribute.String("backup_id", id))
	defer span.End()

	var job *Job
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		resp, err := c.client.Backup().Restorer().
			WithBackend(c.config.Backend).
			WithBackupID(id).
			WithWaitForCompletion(false).
			Do(ctx)
		if err != nil {
			return err
		}
		job = &Job{ID: resp.ID, Backend: resp.Backend, RawStatus: deref(resp.Status),
			Error: resp.Error, Collections: resp.Classes, Path: resp.Path}
		return nil
	})
	if err != nil {
		return nil, c.fail(span, classifyError("submit_restore", err))
	}
	return c.finishJob(job, id), nil
}

// RestoreStatus returns the current state of a restore job.
func (c *Client) RestoreStatus(ctx context.Context, id string) (*Job, error) {
	ctx, span := c.startSpan(ctx, "store.RestoreStatus", attribute.String("backup_id", id))
	defer span.End()

	var job *Job
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		resp, err := c.client.Backup().RestoreStatusGetter().
			WithBackend(c.config.Backend).
			WithBackupID(id).
			Do(ctx)
		if err != nil {
			return err
		}
		job = &Job{ID: resp.ID, Backend: resp.Backend, RawStatus: deref(resp.Status),
			Error: resp.Error, Path: resp.Path}
		return nil
	})
	if err != nil {
		return nil, c.fail(span, classifyError("restore_status", err))
	}
	return c.finishJob(job, id), nil
}

// -----------------------------------------------------------------------------
// Internal Methods
// -----------------------------------------------------------------------------

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *Client) finishJob(job *Job, id string) *Job {
	if job.ID == "" {
		job.ID = id
	}
	if job.Backend == "" {
		job.Backend = c.config.Backend
	}
	job.Status = ParseJobStatus(job.RawStatus)
	return job
}

// withTimeout runs fn under the per-request timeout.
func (c *Client) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	return fn(ctx)
}

// retryRead runs a read-only call with backoff. fn must return classified errors.
func (c *Client) retryRead(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("retrying read",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.withTimeout(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			break
		}
	}
	return lastErr
}

// calculateBackoff returns base * 2^(attempt-1), capped, with ±jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.config.RetryBackoff * time.Duration(1<<(attempt-1))
	if backoff > c.config.MaxRetryBackoff {
		backoff = c.config.MaxRetryBackoff
	}

	jitterRange := float64(backoff) * c.config.RetryJitter
	backoff = time.Duration(float64(backoff) + (rand.Float64()*2-1)*jitterRange)
	if backoff < 0 {
		backoff = c.config.RetryBackoff
	}
	return backoff
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
