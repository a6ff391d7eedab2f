// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
 * Value coercion for loose equality and template output.
 *
 * Event fields arrive from several sources (JSON decoding yields float64,
 * YAML rules yield int, Go callers pass anything), so numeric values of any
 * Go kind are widened to float64 before comparison.
 *
 * Coercion modes:
 *   - toFloat64: numeric kinds only (strict)
 *   - toNumber: numeric kinds plus bool (1/0) and numeric strings (lenient);
 *     whitespace-only strings are 0, unparsable strings fail
 *   - stringify: any value to its template text
 */

// toFloat64 converts value to float64 if it's a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toNumber converts scalars to float64 for loose comparison.
// Booleans map to 1/0; strings are trimmed and parsed, empty means 0.
func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), false
		}
		return f, true
	default:
		return toFloat64(v)
	}
}

// isScalar reports whether v is a string, bool or number.
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := toFloat64(v)
	return ok
}

// isFalsy mirrors the usual notion of an "empty" configuration value:
// nil, false, "", zero and NaN.
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	}
	if n, ok := toFloat64(v); ok {
		return n == 0 || math.IsNaN(n)
	}
	return false
}

func truthy(v any) bool {
	return !isFalsy(v)
}

// stringify renders a resolved template value.
// Lists are joined with commas; integral floats drop the fraction.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if e != nil {
				parts[i] = stringify(e)
			}
		}
		return strings.Join(parts, ",")
	}
	if n, ok := toFloat64(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
