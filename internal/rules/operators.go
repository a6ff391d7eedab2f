// internal/rules/operators.go
package rules

import (
	"reflect"
)

/*
 * Mask field comparison.
 *
 * Mask values are compared with loose equality:
 *   - nil equals only nil (a field missing from the event is nil)
 *   - string/string and bool/bool compare directly
 *   - any other pair of scalars compares numerically after toNumber,
 *     so 9 == 9.0 == "9" and true == 1
 *   - non-scalars compare by identity when their type is comparable;
 *     maps, slices and funcs never match
 */

// LooseEqual reports whether an event value satisfies an expected mask value.
func LooseEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	if as, ok := actual.(string); ok {
		if es, ok := expected.(string); ok {
			return as == es
		}
	}
	if ab, ok := actual.(bool); ok {
		if eb, ok := expected.(bool); ok {
			return ab == eb
		}
	}

	if isScalar(actual) && isScalar(expected) {
		na, oka := toNumber(actual)
		ne, oke := toNumber(expected)
		return oka && oke && na == ne
	}

	return strictEqual(actual, expected)
}

// strictEqual compares values of the same comparable type without panicking.
func strictEqual(a, b any) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
