// internal/rules/fieldpath.go
package rules

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/solatis/eventfilter/internal/types"
)

/*
 * Field path resolution for emission payloads.
 *
 * Resolves dotted/bracketed paths ("eventConfig.context[0]") against the
 * fixed payload schema of a derived event: types.Detail at the root, rules,
 * events, masks, nodes, plain maps and lists below it. No reflection: every
 * container the payload can hold has an explicit case.
 *
 * Key functions:
 *   - ParsePath: splits a placeholder expression into PathSegments
 *   - Resolve: traverses the payload following the segment chain
 *
 * Numeric segments index lists and also work as mapping keys, so
 * "sequence.0.key" and "sequence[0].key" resolve identically. Lists and
 * strings expose their size as "length".
 */

// ResolveResult contains the resolved value and the path taken.
type ResolveResult struct {
	Value        any                 // resolved value (may be nil when Found)
	ResolvedPath []types.PathSegment // segments consumed
	Found        bool                // true if path resolved to a value
}

// ParsePath splits a placeholder expression on '.', '[' and ']'.
// Returns ErrInvalidPath for expressions without segments and ErrPathTooDeep
// beyond MaxPathDepth.
func ParsePath(expr string) ([]types.PathSegment, error) {
	parts := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
	if len(parts) == 0 {
		return nil, types.ErrInvalidPath
	}
	if len(parts) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}

	path := make([]types.PathSegment, 0, len(parts))
	for _, p := range parts {
		seg := types.PathSegment{Key: p}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			seg.Index = n
			seg.IsIndex = true
		}
		path = append(path, seg)
	}
	return path, nil
}

// Resolve traverses data following path segments.
// Returns ErrPathTooDeep if path exceeds MaxPathDepth.
// Returns ErrFieldNotFound if path does not exist in data.
func Resolve(path []types.PathSegment, data any) (ResolveResult, error) {
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}
	return resolveRecursive(path, data, nil)
}

// resolveRecursive walks one segment per call, accumulating the resolved path.
func resolveRecursive(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{
			Value:        current,
			ResolvedPath: resolvedSoFar,
			Found:        true,
		}, nil
	}

	seg := path[0]
	remaining := path[1:]

	next, ok := step(current, seg)
	if !ok {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return resolveRecursive(remaining, next, append(resolvedSoFar, seg))
}

// step looks up one segment in one container of the payload schema.
func step(current any, seg types.PathSegment) (any, bool) {
	switch v := current.(type) {
	case *types.Detail:
		if v == nil {
			return nil, false
		}
		return lookupKey(v.Fields(), seg.Key)
	case *types.Rule:
		if v == nil {
			return nil, false
		}
		return lookupKey(v.Fields(), seg.Key)
	case types.Event:
		return lookupEvent(v, seg.Key)
	case map[string]any:
		return lookupKey(v, seg.Key)
	case types.Mask:
		return lookupKey(v, seg.Key)
	case types.Object:
		return v.Get(seg.Key)
	case types.Node:
		s, ok := v[seg.Key]
		return s, ok
	case map[string]string:
		s, ok := v[seg.Key]
		return s, ok
	case []any:
		return lookupIndex(v, seg)
	case []string:
		return lookupIndex(v, seg)
	case []types.Mask:
		return lookupIndex(v, seg)
	case []types.Node:
		return lookupIndex(v, seg)
	case string:
		if !seg.IsIndex && seg.Key == lengthKey {
			return utf8.RuneCountInString(v), true
		}
		return nil, false
	default:
		// nil or scalar value but path continues
		return nil, false
	}
}

func lookupKey[M ~map[string]any](m M, key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

const lengthKey = "length"

func lookupIndex[T any](list []T, seg types.PathSegment) (any, bool) {
	if !seg.IsIndex && seg.Key == lengthKey {
		return len(list), true
	}
	if !seg.IsIndex || seg.Index >= len(list) {
		return nil, false
	}
	return list[seg.Index], true
}

// lookupEvent exposes the event's type and path next to its own fields.
func lookupEvent(ev types.Event, key string) (any, bool) {
	switch key {
	case "type":
		return ev.Type(), true
	case "path":
		return ev.Path(), true
	case "defaultPrevented":
		return ev.DefaultPrevented(), true
	default:
		return ev.Field(key)
	}
}
