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
	"log/slog"
	"slices"
	"strings"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// DefaultPrimaryCollection is the collection whose document count is
// verified when none is configured.
const DefaultPrimaryCollection = "VERBA_DOCUMENTS"

// Expectations are the values a restore is verified against.
// Nil fields are not checked.
type Expectations struct {
	// PrimaryCollection names the collection whose objects are counted.
	PrimaryCollection string

	// Documents is the expected object count of PrimaryCollection.
	Documents *int64

	// Collections is the expected number of collections.
	Collections *int

	// Source records where the values came from ("flags", "manifest", "restore job").
	Source string
}

// Empty reports whether there is nothing to check.
func (e Expectations) Empty() bool {
	return e.Documents == nil && e.Collections == nil
}

// VerificationResult is the verifier's verdict.
type VerificationResult struct {
	PrimaryCollection string

	ObservedCollectionCount int
	ExpectedCollectionCount *int

	ObservedDocumentCount store.ObjectCount
	ExpectedDocumentCount *int64

	// Matched is true when every supplied expectation was met.
	Matched bool

	// Mismatches describes each failed check with expected and observed values.
	Mismatches []string

	Source string
}

// Summary renders a one-line report including both expected and observed
// values for every check.
func (r VerificationResult) Summary() string {
	var parts []string
	if r.ExpectedCollectionCount != nil {
		parts = append(parts, fmt.Sprintf("collections expected=%d observed=%d",
			*r.ExpectedCollectionCount, r.ObservedCollectionCount))
	} else {
		parts = append(parts, fmt.Sprintf("collections observed=%d", r.ObservedCollectionCount))
	}
	if r.ExpectedDocumentCount != nil {
		parts = append(parts, fmt.Sprintf("%s documents expected=%d observed=%s",
			r.PrimaryCollection, *r.ExpectedDocumentCount, r.ObservedDocumentCount))
	} else {
		parts = append(parts, fmt.Sprintf("%s documents observed=%s",
			r.PrimaryCollection, r.ObservedDocumentCount))
	}
	verdict := "MATCHED"
	if !r.Matched {
		verdict = "MISMATCH"
	}
	return verdict + ": " + strings.Join(parts, ", ")
}

// Verifier compares the restored store against expectations.
type Verifier struct {
	reader SchemaReader
	logger *slog.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(reader SchemaReader, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{reader: reader, logger: logger.With(slog.String("component", "verifier"))}
}

// Verify queries the collection count and the primary collection's object
// count and compares them to exp.
//
// # Description
//
// A mismatch is reported in the result, never as an error: the restore
// has already completed and there is nothing safe to roll back to. An
// unknown document count never matches an expected value. The returned
// error is reserved for the store being unreachable.
func (v *Verifier) Verify(ctx context.Context, exp Expectations) (VerificationResult, error) {
	primary := exp.PrimaryCollection
	if primary == "" {
		primary = DefaultPrimaryCollection
	}
	res := VerificationResult{
		PrimaryCollection:       primary,
		ExpectedCollectionCount: exp.Collections,
		ExpectedDocumentCount:   exp.Documents,
		ObservedDocumentCount:   store.CountUnknown,
		Source:                  exp.Source,
	}

	names, err := v.reader.ListCollections(ctx)
	if err != nil {
		return res, fmt.Errorf("verify: %w", err)
	}
	res.ObservedCollectionCount = len(names)

	if slices.Contains(names, primary) {
		count, err := v.reader.CountObjects(ctx, primary)
		if err != nil {
			if errors.Is(err, store.ErrStoreUnreachable) {
				return res, fmt.Errorf("verify: %w", err)
			}
			v.logger.Warn("primary collection count unavailable",
				slog.String("collection", primary), slog.String("error", err.Error()))
			count = store.CountUnknown
		}
		res.ObservedDocumentCount = count
	} else {
		v.logger.Warn("primary collection not present after restore", slog.String("collection", primary))
	}

	if exp.Collections != nil && *exp.Collections != res.ObservedCollectionCount {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("collection count: expected %d, observed %d",
			*exp.Collections, res.ObservedCollectionCount))
	}
	if exp.Documents != nil && int64(res.ObservedDocumentCount) != *exp.Documents {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("%s document count: expected %d, observed %s",
			primary, *exp.Documents, res.ObservedDocumentCount))
	}
	res.Matched = len(res.Mismatches) == 0

	if res.Matched {
		v.logger.Info("verification matched", slog.String("summary", res.Summary()))
	} else {
		v.logger.Warn("verification mismatch", slog.Any("mismatches", res.Mismatches))
	}
	return res, nil
}
