// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
)

var (
	// ErrStoreUnreachable is returned when the store endpoint cannot be reached.
	// It is fatal for every stage and is never retried by callers.
	ErrStoreUnreachable = errors.New("store unreachable")

	// ErrSchemaQueryFailed is returned when a schema or aggregate response is
	// malformed or rejected.
	ErrSchemaQueryFailed = errors.New("schema query failed")

	// ErrNotFound is returned when the store has no record for a backup or
	// restore id. It is distinct from a FAILED job.
	ErrNotFound = errors.New("not found")

	// ErrRejected is returned when the store refuses a request (4xx/5xx other
	// than 404). The store's message is preserved in the wrapping error.
	ErrRejected = errors.New("store rejected request")
)

// RequestError carries the operation and the store's response for a failed call.
type RequestError struct {
	// Op is the client operation, e.g. "create_backup".
	Op string
	// StatusCode is the HTTP status, or -1 for transport failures.
	StatusCode int
	// Message is the store's error text, verbatim.
	Message string
	// Kind is one of the sentinel errors above.
	Kind error
	// Err is the underlying client error.
	Err error
}

// Error returns "<op>: <kind> (<status>): <message>".
func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %v (http %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

// Unwrap exposes the underlying client error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind sentinel.
func (e *RequestError) Is(target error) bool {
	return target == e.Kind
}

// classifyError converts a weaviate client error into a *RequestError.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	reqErr := &RequestError{Op: op, StatusCode: -1, Err: err}

	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) {
		reqErr.StatusCode = clientErr.StatusCode
		reqErr.Message = clientErr.Msg
		if cause := rootCause(clientErr); cause != nil && isConnectionError(cause) {
			reqErr.Kind = ErrStoreUnreachable
			reqErr.Message = cause.Error()
			return reqErr
		}
		switch {
		case clientErr.StatusCode == http.StatusNotFound:
			reqErr.Kind = ErrNotFound
		default:
			reqErr.Kind = ErrRejected
		}
		return reqErr
	}

	if isConnectionError(err) {
		reqErr.Kind = ErrStoreUnreachable
		return reqErr
	}
	reqErr.Kind = ErrRejected
	return reqErr
}

// rootCause follows DerivedFromError through nested client errors. The
// GraphQL path wraps transport failures twice and WeaviateClientError has
// no Unwrap, so errors.As cannot reach them.
func rootCause(err *fault.WeaviateClientError) error {
	var cause error = err
	for {
		inner, ok := cause.(*fault.WeaviateClientError)
		if !ok || inner.DerivedFromError == nil {
			if ok && inner == err {
				return nil
			}
			return cause
		}
		cause = inner.DerivedFromError
	}
}

// isConnectionError reports transport-level failures: refused connections,
// DNS failures, resets and per-request timeouts.
func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// isRetryable reports whether a read-only call may be attempted again.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrStoreUnreachable) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}
