package docstore

import (
	"bytes"
	"strings"
	"time"
)

// Lookup resolves a dotted field path ("xpBreakdown.total") inside a field map.
func Lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// typeRank follows Firestore's cross-type ordering: null, booleans, numbers,
// timestamps, strings, bytes, arrays, maps.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	case []byte:
		return 5
	case []any:
		return 6
	case map[string]any:
		return 7
	default:
		return 8
	}
}

func toFloat(v any) float64 {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// CompareValues orders two field values.  Integers and doubles compare
// numerically with each other.
func CompareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	case string:
		return strings.Compare(av, b.(string))
	case []byte:
		return bytes.Compare(av, b.([]byte))
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := CompareValues(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return compareInts(len(av), len(bv))
	case map[string]any:
		return compareInts(len(av), len(b.(map[string]any)))
	}

	if ra == 2 {
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Matches reports whether a document satisfies the query's filter.
func Matches(doc *Document, q Query) bool {
	if q.Where == nil {
		return true
	}
	v, ok := Lookup(doc.Fields, q.Where.Field)
	if !ok {
		return false
	}
	return typeRank(v) == typeRank(q.Where.Value) && CompareValues(v, q.Where.Value) == 0
}
