package rules

import (
	"maps"
	"path"

	"github.com/solatis/eventfilter/internal/types"
)

// DefaultSelectorFields are the event fields whose string mask values are
// selectors rather than literals.
var DefaultSelectorFields = []string{"target", "srcElement", "toElement"}

// matchSelector tests an event field value against a selector.
// Attribute maps are treated as a types.Node; a node equal to the event's
// origin is matched with the rest of the origin path as its ancestors.
// Other Selectable values decide for themselves; plain strings are matched
// with glob syntax. Anything else fails.
func matchSelector(value any, selector string, origin []types.Node) bool {
	var node types.Node
	switch v := value.(type) {
	case types.Node:
		node = v
	case map[string]string:
		node = types.Node(v)
	case map[string]any:
		node = make(types.Node, len(v))
		for k, attr := range v {
			if s, ok := attr.(string); ok {
				node[k] = s
			}
		}
	case types.Selectable:
		return v.Matches(selector)
	case string:
		ok, err := path.Match(selector, v)
		return err == nil && ok
	default:
		return false
	}

	if len(origin) > 0 && maps.Equal(node, origin[0]) {
		return types.MatchPath(origin, selector)
	}
	return node.Matches(selector)
}
