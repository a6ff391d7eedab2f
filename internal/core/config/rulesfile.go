package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/solatis/eventfilter/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrRulesDepth indicates a rules document nested beyond types.MaxTreeDepth
// or containing an alias cycle.
var ErrRulesDepth = errors.New("rules document nested too deeply")

// LoadRules reads a YAML or JSON rules file. Mappings become types.Object so
// that rule and group order follow the document. An empty path or an empty
// document yields nil (no rules).
func LoadRules(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	source, err := DecodeRules(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return source, nil
}

// DecodeRules decodes one YAML (or JSON) document into a compiler source.
func DecodeRules(r io.Reader) (any, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return fromNode(&doc, 0)
}

// fromNode converts a YAML node tree, keeping mapping key order.
func fromNode(n *yaml.Node, depth int) (any, error) {
	// Alias expansion and rule trees both count; tree depth is enforced
	// again by the compiler, this only bounds the conversion itself.
	if depth > 4*types.MaxTreeDepth {
		return nil, ErrRulesDepth
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0], depth+1)

	case yaml.MappingNode:
		obj := make(types.Object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			value, err := fromNode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			if n.Content[i].ShortTag() == mergeTag {
				obj = merge(obj, value)
				continue
			}

			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, fmt.Errorf("line %d: mapping key: %w", n.Content[i].Line, err)
			}
			obj = set(obj, key, value)
		}
		return obj, nil

	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			value, err := fromNode(c, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil

	case yaml.AliasNode:
		return fromNode(n.Alias, depth+1)

	default:
		var value any
		if err := n.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return value, nil
	}
}

const mergeTag = "!!merge"

// merge applies a "<<" value: a mapping or a list of mappings whose keys do
// not override keys already present.
func merge(obj types.Object, value any) types.Object {
	switch v := value.(type) {
	case types.Object:
		for _, f := range v {
			if _, exists := obj.Get(f.Key); !exists {
				obj = append(obj, f)
			}
		}
	case []any:
		for _, elem := range v {
			obj = merge(obj, elem)
		}
	}
	return obj
}

// set replaces an existing key in place or appends it.
func set(obj types.Object, key string, value any) types.Object {
	for i := range obj {
		if obj[i].Key == key {
			obj[i].Value = value
			return obj
		}
	}
	return append(obj, types.Field{Key: key, Value: value})
}
