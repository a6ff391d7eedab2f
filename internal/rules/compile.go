// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/solatis/eventfilter/internal/types"
)

/*
 * Rule compilation.
 *
 * Normalizes arbitrary rule configuration into the canonical rule table held
 * by the Engine. Compilation never fails: entries that cannot be used are
 * dropped (tree flattening) or degraded to an inert rule the engine skips.
 *
 * Compilation workflow:
 *   1. classifySource: detect the source shape (flat list or nested tree)
 *   2. flattenTree: turn a tree into seeds {context, name, mask}
 *   3. canonicalize: fill defaults, build the sequence, apply mask fixes
 *
 * Context chains are built nearest-group-first so they line up with the
 * ancestry chain handed to OnEvent (nearest node first).
 *
 * Key order: types.Object keeps document order. Plain Go maps are walked in
 * sorted key order so the same configuration always compiles to the same
 * table; table order decides ties between equally specific rules.
 */

// Compile normalizes a rule configuration into a canonical rule table.
//
// Accepted shapes: nil (empty table), a flat list of entries ([]any,
// []map[string]any, []types.Object, []*types.Rule, []types.Rule) or a nested
// tree (map[string]any, types.Object). Compiled masks are copies; the source
// is never mutated.
func Compile(source any) []*types.Rule {
	entries := classifySource(source)
	compiled := make([]*types.Rule, 0, len(entries))
	for _, entry := range entries {
		compiled = append(compiled, canonicalize(entry))
	}
	return compiled
}

// classifySource converts every accepted source shape into a flat list of raw entries.
func classifySource(source any) []any {
	if isFalsy(source) {
		return nil
	}

	switch s := source.(type) {
	case []*types.Rule:
		entries := make([]any, len(s))
		for i, r := range s {
			entries[i] = r
		}
		return entries
	case []types.Rule:
		entries := make([]any, len(s))
		for i := range s {
			entries[i] = &s[i]
		}
		return entries
	}

	if list, ok := asList(source); ok {
		return list
	}
	if tree, ok := asMapping(source); ok {
		return flattenTree(tree, nil, 0)
	}
	return nil
}

// flattenTree walks a nested grouping tree and emits one seed per leaf.
// parent holds the enclosing group keys, nearest first.
func flattenTree(tree types.Object, parent []string, depth int) []any {
	var seeds []any
	for _, f := range tree {
		if !isAllowedValue(f.Value, true) {
			continue
		}

		if group, ok := asMapping(f.Value); ok && isDeepValue(group) {
			if depth+1 >= types.MaxTreeDepth {
				continue
			}
			chain := append([]string{f.Key}, parent...)
			seeds = append(seeds, flattenTree(group, chain, depth+1)...)
			continue
		}

		seeds = append(seeds, types.Object{
			{Key: types.FieldContext, Value: parent},
			{Key: types.FieldName, Value: f.Key},
			{Key: types.FieldMask, Value: f.Value},
		})
	}
	return seeds
}

// isAllowedValue accepts a mapping, or (withSequence) a list of mappings.
func isAllowedValue(value any, withSequence bool) bool {
	if _, ok := asMapping(value); ok {
		return true
	}
	if !withSequence {
		return false
	}
	list, ok := asList(value)
	if !ok {
		return false
	}
	for _, elem := range list {
		if _, ok := asMapping(elem); !ok {
			return false
		}
	}
	return true
}

// isDeepValue reports whether a mapping is a group: at least one of its
// values is a mapping or a list holding a mapping.
func isDeepValue(item types.Object) bool {
	for _, f := range item {
		if isAllowedValue(f.Value, false) {
			return true
		}
		if list, ok := asList(f.Value); ok {
			for _, elem := range list {
				if isAllowedValue(elem, false) {
					return true
				}
			}
		}
	}
	return false
}

// canonicalize builds a compiled rule from one raw entry.
func canonicalize(entry any) *types.Rule {
	switch e := entry.(type) {
	case *types.Rule:
		if e == nil {
			return inertRule()
		}
		return canonicalize(ruleEntry(e))
	case types.Rule:
		return canonicalize(ruleEntry(&e))
	}

	obj, ok := asMapping(entry)
	if !ok {
		return inertRule()
	}

	rule := &types.Rule{Context: []string{}}
	var (
		mask, sequence any
		index          int
		inert          bool
	)
	for _, f := range obj {
		switch f.Key {
		case types.FieldName:
			rule.Name = asString(f.Value)
		case types.FieldMask:
			mask = f.Value
		case types.FieldContext:
			rule.Context = asContext(f.Value)
		case types.FieldSequence:
			sequence = f.Value
		case types.FieldSequenceIndex:
			index, _ = asInt(f.Value)
		case types.FieldSequenceLastIndex:
			// recomputed from the sequence
		case types.FieldInert:
			inert = truthy(f.Value)
		default:
			if rule.Extra == nil {
				rule.Extra = make(map[string]any)
			}
			rule.Extra[f.Key] = f.Value
		}
	}

	var usable bool
	rule.Sequence, usable = buildSequence(mask, sequence)
	rule.Inert = inert || !usable
	for _, step := range rule.Sequence {
		fixMask(step)
	}
	rule.SequenceLastIndex = len(rule.Sequence) - 1
	rule.SequenceIndex = min(max(index, 0), rule.SequenceLastIndex)
	rule.Mask = rule.Sequence[rule.SequenceIndex]
	return rule
}

// buildSequence applies the mask/sequence defaulting rules:
// a list-valued mask is the sequence; otherwise an explicit sequence wins;
// otherwise the mask alone is a one-step sequence. Never returns an empty slice.
// usable is false when there were no steps or any step was not a mapping.
func buildSequence(mask, sequence any) (steps []types.Mask, usable bool) {
	var raw []any
	if list, ok := asList(mask); ok {
		raw = list
	} else if list, ok := asList(sequence); ok {
		raw = list
	} else if mask != nil {
		raw = []any{mask}
	}

	usable = len(raw) > 0
	steps = make([]types.Mask, 0, len(raw))
	for _, step := range raw {
		m, ok := toMask(step)
		usable = usable && ok
		steps = append(steps, m)
	}
	if len(steps) == 0 {
		steps = append(steps, types.Mask{})
	}
	return steps, usable
}

// fixMask upper-cases a single lowercase key when shift must be held:
// shifted key events always report the upper-case character.
func fixMask(mask types.Mask) {
	if !truthy(mask["shiftKey"]) {
		return
	}
	key, ok := mask["key"].(string)
	if !ok || utf8.RuneCountInString(key) != 1 {
		return
	}
	if upper := strings.ToUpper(key); key == strings.ToLower(key) && upper != key {
		mask["key"] = upper
	}
}

// ruleEntry converts an already compiled rule back to a raw entry so that
// re-compiling a table goes through the same canonicalization.
func ruleEntry(r *types.Rule) types.Object {
	obj := types.Object{
		{Key: types.FieldName, Value: r.Name},
		{Key: types.FieldContext, Value: r.Context},
	}
	if r.Inert {
		obj = append(obj, types.Field{Key: types.FieldInert, Value: true})
	}
	if len(r.Sequence) > 0 {
		steps := make([]any, len(r.Sequence))
		for i, m := range r.Sequence {
			steps[i] = m
		}
		obj = append(obj, types.Field{Key: types.FieldSequence, Value: steps})
	} else if r.Mask != nil {
		obj = append(obj, types.Field{Key: types.FieldMask, Value: r.Mask})
	}
	obj = append(obj, types.Field{Key: types.FieldSequenceIndex, Value: r.SequenceIndex})

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj = append(obj, types.Field{Key: k, Value: r.Extra[k]})
	}
	return obj
}

// inertRule is what a non-mapping entry degrades to. The engine skips it.
func inertRule() *types.Rule {
	mask := types.Mask{}
	return &types.Rule{
		Context:  []string{},
		Sequence: []types.Mask{mask},
		Mask:     mask,
		Inert:    true,
	}
}

// asMapping returns an ordered view of a mapping value.
func asMapping(v any) (types.Object, bool) {
	switch m := v.(type) {
	case types.Object:
		return m, true
	case map[string]any:
		return sortedObject(m), true
	case types.Mask:
		return sortedObject(m), true
	default:
		return nil, false
	}
}

func sortedObject(m map[string]any) types.Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(types.Object, 0, len(m))
	for _, k := range keys {
		obj = append(obj, types.Field{Key: k, Value: m[k]})
	}
	return obj
}

// asList returns the elements of a list value.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []types.Object:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []types.Mask:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

// toMask copies a mapping into a fresh Mask; anything else becomes an empty
// mask and reports false.
func toMask(v any) (types.Mask, bool) {
	switch m := v.(type) {
	case types.Mask:
		return m.Clone(), true
	case map[string]any:
		return types.Mask(m).Clone(), true
	case types.Object:
		return types.Mask(m.Map()), true
	default:
		return types.Mask{}, false
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// asContext accepts a list of tags or a single tag. Non-string tags are dropped.
func asContext(v any) []string {
	switch c := v.(type) {
	case []string:
		return append([]string{}, c...)
	case string:
		if c == "" {
			return []string{}
		}
		return []string{c}
	case []any:
		out := make([]string, 0, len(c))
		for _, tag := range c {
			if s, ok := tag.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func asInt(v any) (int, bool) {
	n, ok := toFloat64(v)
	if !ok {
		return 0, false
	}
	return int(n), true
}
