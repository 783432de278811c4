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
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want JobStatus
	}{
		{"STARTED", StatusPending},
		{"TRANSFERRING", StatusPending},
		{"TRANSFERRED", StatusPending},
		{"PENDING", StatusPending},
		{"SUCCESS", StatusSuccess},
		{"success", StatusSuccess},
		{"FAILED", StatusFailed},
		{"CANCELED", StatusFailed},
		{"", StatusUnknown},
		{"EXPLODED", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseJobStatus(tt.raw))
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusUnknown.Terminal())
	assert.Equal(t, "UNKNOWN", JobStatus(42).String())
}

func TestObjectCount(t *testing.T) {
	assert.Equal(t, "unknown", CountUnknown.String())
	assert.Equal(t, "178", ObjectCount(178).String())
	assert.True(t, CountUnknown.Populated())
	assert.True(t, ObjectCount(1).Populated())
	assert.False(t, ObjectCount(0).Populated())
	assert.True(t, ObjectCount(0).Known())
}

func aggregateResponse(class string, meta any) *models.GraphQLResponse {
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Aggregate": map[string]interface{}{
				class: []interface{}{map[string]interface{}{"meta": meta}},
			},
		},
	}
}

func TestParseAggregateCount(t *testing.T) {
	t.Run("float", func(t *testing.T) {
		count, err := parseAggregateCount(aggregateResponse("A", map[string]interface{}{"count": float64(150)}), "A")
		require.NoError(t, err)
		assert.Equal(t, ObjectCount(150), count)
	})

	t.Run("json number", func(t *testing.T) {
		count, err := parseAggregateCount(aggregateResponse("A", map[string]interface{}{"count": json.Number("3")}), "A")
		require.NoError(t, err)
		assert.Equal(t, ObjectCount(3), count)
	})

	t.Run("zero is zero", func(t *testing.T) {
		count, err := parseAggregateCount(aggregateResponse("A", map[string]interface{}{"count": float64(0)}), "A")
		require.NoError(t, err)
		assert.Equal(t, ObjectCount(0), count)
	})

	bad := map[string]*models.GraphQLResponse{
		"nil response":   nil,
		"no aggregate":   {Data: map[string]models.JSONObject{}},
		"wrong class":    aggregateResponse("B", map[string]interface{}{"count": float64(1)}),
		"meta not map":   aggregateResponse("A", "nope"),
		"null count":     aggregateResponse("A", map[string]interface{}{"count": nil}),
		"negative count": aggregateResponse("A", map[string]interface{}{"count": float64(-2)}),
		"fractional":     aggregateResponse("A", map[string]interface{}{"count": 1.5}),
		"graphql errors": {Errors: []*models.GraphQLError{{Message: "no such class"}}},
	}
	for name, resp := range bad {
		t.Run(name, func(t *testing.T) {
			count, err := parseAggregateCount(resp, "A")
			assert.ErrorIs(t, err, ErrSchemaQueryFailed)
			assert.Equal(t, CountUnknown, count)
		})
	}
}

func TestRequestError_IsKind(t *testing.T) {
	err := fmt.Errorf("census: %w", &RequestError{Op: "list_collections", StatusCode: -1,
		Kind: ErrStoreUnreachable, Err: errors.New("dial tcp: connection refused")})

	assert.ErrorIs(t, err, ErrStoreUnreachable)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, isRetryable(err))
}
