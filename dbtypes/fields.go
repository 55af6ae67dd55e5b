// Package dbtypes holds the stored entities of the game and their tolerant
// decoders.
//
// Every Decode function maps a raw field map onto an entity, falling back to
// a per-field default instead of failing.  Documents written by older clients,
// or by hand, still decode into something usable.
package dbtypes

import (
	"encoding/json"
	"math"
	"time"
)

// Now is the clock used for required timestamps that are missing from a
// document.  Tests replace it.
var Now = time.Now

func intField(fields map[string]any, key string, def int64) int64 {
	if v, ok := asInt(fields[key]); ok {
		return v
	}
	return def
}

func optIntField(fields map[string]any, key string) *int64 {
	if v, ok := asInt(fields[key]); ok {
		return &v
	}
	return nil
}

func asInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float32:
		return truncate(float64(v))
	case float64:
		return truncate(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return truncate(f)
		}
	}
	return 0, false
}

// truncate drops the fraction.  Values with no int64 counterpart are
// malformed.
func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func floatField(fields map[string]any, key string, def float64) float64 {
	if v, ok := asFloat(fields[key]); ok {
		return v
	}
	return def
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stringField(fields map[string]any, key, def string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return def
}

func optStringField(fields map[string]any, key string) *string {
	if s, ok := fields[key].(string); ok {
		return &s
	}
	return nil
}

func boolField(fields map[string]any, key string, def bool) bool {
	if b, ok := fields[key].(bool); ok {
		return b
	}
	return def
}

// timeField decodes a required timestamp, defaulting to Now().
func timeField(fields map[string]any, key string) time.Time {
	if t, ok := asTime(fields[key]); ok {
		return t
	}
	return Now()
}

func optTimeField(fields map[string]any, key string) *time.Time {
	if t, ok := asTime(fields[key]); ok {
		return &t
	}
	return nil
}

func asTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func mapField(fields map[string]any, key string) map[string]any {
	if m, ok := fields[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// mapsField returns the map elements of a list field, skipping anything else.
func mapsField(fields map[string]any, key string) []map[string]any {
	out := []map[string]any{}
	switch list := fields[key].(type) {
	case []any:
		for _, elem := range list {
			if m, ok := elem.(map[string]any); ok {
				out = append(out, m)
			}
		}
	case []map[string]any:
		out = append(out, list...)
	}
	return out
}

func putOptString(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}

func putOptInt(fields map[string]any, key string, v *int64) {
	if v != nil {
		fields[key] = *v
	}
}

func putOptTime(fields map[string]any, key string, v *time.Time) {
	if v != nil {
		fields[key] = *v
	}
}
