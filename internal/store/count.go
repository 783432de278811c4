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
	"fmt"
	"math"
	"strings"

	"github.com/weaviate/weaviate/entities/models"
)

// parseAggregateCount extracts data.Aggregate.<class>[0].meta.count.
//
// Every deviation from that shape yields CountUnknown and an error wrapping
// ErrSchemaQueryFailed. Zero is only returned when the store said zero.
func parseAggregateCount(resp *models.GraphQLResponse, class string) (ObjectCount, error) {
	if resp == nil {
		return CountUnknown, fmt.Errorf("%w: %s: empty response", ErrSchemaQueryFailed, class)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return CountUnknown, fmt.Errorf("%w: %s: %s", ErrSchemaQueryFailed, class, strings.Join(msgs, "; "))
	}

	aggregate, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return CountUnknown, shapeError(class, "data.Aggregate")
	}
	rows, ok := aggregate[class].([]interface{})
	if !ok || len(rows) == 0 {
		return CountUnknown, shapeError(class, "data.Aggregate."+class)
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return CountUnknown, shapeError(class, "row")
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return CountUnknown, shapeError(class, "meta")
	}

	raw, present := meta["count"]
	if !present || raw == nil {
		return CountUnknown, shapeError(class, "meta.count")
	}

	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return CountUnknown, shapeError(class, "meta.count")
		}
		value = f
	default:
		return CountUnknown, shapeError(class, "meta.count")
	}

	if value < 0 || value != math.Trunc(value) {
		return CountUnknown, fmt.Errorf("%w: %s: invalid count %v", ErrSchemaQueryFailed, class, value)
	}
	return ObjectCount(value), nil
}

func shapeError(class, field string) error {
	return fmt.Errorf("%w: %s: missing or malformed %s", ErrSchemaQueryFailed, class, field)
}
