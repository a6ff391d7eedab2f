// internal/rules/operators_test.go
package rules

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/solatis/eventfilter/internal/types"
)

func TestLooseEqual(t *testing.T) {
	node := types.Node{"id": "x"}

	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{name: "same string", actual: "s", expected: "s", want: true},
		{name: "different string", actual: "s", expected: "S", want: false},
		{name: "int and float", actual: 9, expected: 9.0, want: true},
		{name: "numeric string", actual: "9", expected: 9, want: true},
		{name: "padded numeric string", actual: " 9 ", expected: 9, want: true},
		{name: "json number", actual: json.Number("9"), expected: 9, want: true},
		{name: "bool and one", actual: true, expected: 1, want: true},
		{name: "bool and zero", actual: false, expected: 0, want: true},
		{name: "bool and string one", actual: true, expected: "1", want: true},
		{name: "bool pair", actual: true, expected: false, want: false},
		{name: "empty string is zero", actual: "", expected: 0, want: true},
		{name: "non-numeric string", actual: "abc", expected: 0, want: false},
		{name: "missing vs nil", actual: nil, expected: nil, want: true},
		{name: "missing vs false", actual: nil, expected: false, want: false},
		{name: "missing vs zero", actual: nil, expected: 0, want: false},
		{name: "NaN never equal", actual: math.NaN(), expected: math.NaN(), want: false},
		{name: "map vs map", actual: map[string]any{}, expected: map[string]any{}, want: false},
		{name: "slice vs slice", actual: []any{1}, expected: []any{1}, want: false},
		{name: "map vs string", actual: node, expected: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooseEqual(tt.actual, tt.expected); got != tt.want {
				t.Errorf("LooseEqual(%#v, %#v) = %v, want %v", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestIsFalsy(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, true},
		{false, true},
		{"", true},
		{0, true},
		{0.0, true},
		{math.NaN(), true},
		{true, false},
		{"0", false},
		{1, false},
		{[]any{}, false},
		{map[string]any{}, false},
	}

	for _, tt := range tests {
		if got := isFalsy(tt.value); got != tt.want {
			t.Errorf("isFalsy(%#v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"s", "s"},
		{true, "true"},
		{83.0, "83"},
		{1.5, "1.5"},
		{int64(-2), "-2"},
		{[]string{"a", "b"}, "a,b"},
		{[]any{"a", nil, 1}, "a,,1"},
	}

	for _, tt := range tests {
		if got := stringify(tt.value); got != tt.want {
			t.Errorf("stringify(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
