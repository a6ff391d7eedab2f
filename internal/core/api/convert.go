package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/solatis/eventfilter/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

// DecodeEvent converts a decoded Struct (or JSON) value into a record.
//
// Shape: {type: string, fields?: {...}, path?: [{attr: value}, ...]}.
// Path attribute values must be scalars; numbers and booleans are kept in
// their text form.
func DecodeEvent(raw any) (*types.Record, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: event must be an object", ErrInvalidEvent)
	}

	eventType, _ := m["type"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, types.ErrMissingEventType)
	}

	var fields map[string]any
	if f, ok := m["fields"]; ok && f != nil {
		if fields, ok = f.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: fields must be an object", ErrInvalidEvent)
		}
	}

	var path []types.Node
	if p, ok := m["path"]; ok && p != nil {
		list, ok := p.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: path must be a list", ErrInvalidEvent)
		}
		for i, elem := range list {
			node, err := decodeNode(elem)
			if err != nil {
				return nil, fmt.Errorf("%w: path[%d]: %v", ErrInvalidEvent, i, err)
			}
			path = append(path, node)
		}
	}

	return types.NewRecord(eventType, fields, path...), nil
}

func decodeNode(raw any) (types.Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("node must be an object")
	}
	node := make(types.Node, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			node[k] = t
		case bool:
			node[k] = strconv.FormatBool(t)
		case float64:
			node[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
		default:
			return nil, fmt.Errorf("attribute %q must be a scalar", k)
		}
	}
	return node, nil
}

// toStruct converts a response through JSON so that domain types with custom
// encoders (rules, masks, ordered objects) reach structpb as plain values.
func toStruct(v map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var plain map[string]any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return structpb.NewStruct(plain)
}
