// Package types provides domain models shared across eventfilter components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the rule compiler and engine can be embedded without
// pulling in transport or storage deps. ID utilities in ids.go import uuid
// but are isolated for selective inclusion.
package types

import (
	"encoding/json"
	"time"
)

// Field is one key/value pair of an ordered mapping.
type Field struct {
	Key   string
	Value any
}

// Object is a mapping that preserves the key order of its source document.
// The rules file loader produces Objects so that rule order (which decides
// ties between equally specific rules) follows the author's file.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Map converts the object to an unordered map. Nested Objects are converted too.
func (o Object) Map() map[string]any {
	m := make(map[string]any, len(o))
	for _, f := range o {
		m[f.Key] = plain(f.Value)
	}
	return m
}

// MarshalJSON implements json.Marshaler, keeping key order.
func (o Object) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, f := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func plain(v any) any {
	switch t := v.(type) {
	case Object:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// Node is one element of an event's origin path: the attributes of a node
// in the hierarchy the event travelled through, nearest first.
type Node map[string]string

// Event is a field-accessible record delivered by an event source.
type Event interface {
	// Type is the event category, e.g. "keydown".
	Type() string
	// Field returns the value of a named field. Missing fields report false.
	Field(name string) (any, bool)
	// Path lists the nodes from the event's origin outward.
	Path() []Node
	// PreventDefault marks the event as consumed.
	PreventDefault()
	DefaultPrevented() bool
}

// Selectable is implemented by field values that can be matched against a
// selector pattern (the equivalent of a node's matches(selector)).
type Selectable interface {
	Matches(selector string) bool
}

// Record is the concrete event used by the bus, the CLI and the gRPC API.
type Record struct {
	EventType string         `json:"type"`
	Fields    map[string]any `json:"fields,omitempty"`
	Nodes     []Node         `json:"path,omitempty"`

	prevented bool
}

// NewRecord creates a record of the given type.
func NewRecord(eventType string, fields map[string]any, path ...Node) *Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Record{EventType: eventType, Fields: fields, Nodes: path}
}

func (r *Record) Type() string { return r.EventType }

// Field falls back to the record type for "type" so masks can name the event
// type, and to the origin node for "target".
func (r *Record) Field(name string) (any, bool) {
	if v, ok := r.Fields[name]; ok {
		return v, true
	}
	switch {
	case name == "type":
		return r.EventType, true
	case name == "target" && len(r.Nodes) > 0:
		return r.Nodes[0], true
	}
	return nil, false
}

func (r *Record) Path() []Node { return r.Nodes }

func (r *Record) PreventDefault() { r.prevented = true }

func (r *Record) DefaultPrevented() bool { return r.prevented }

// Detail is the payload attached to every derived event.
type Detail struct {
	Name             string
	ComposedContexts []string // nearest first
	OriginalEvent    Event
	EventConfig      *Rule
}

// Context returns the nearest context tag. ok is false when the event had no
// context at all; an empty tag is still a tag.
func (d *Detail) Context() (tag string, ok bool) {
	if len(d.ComposedContexts) == 0 {
		return "", false
	}
	return d.ComposedContexts[0], true
}

// Fields exposes the payload schema used by result type templates.
func (d *Detail) Fields() map[string]any {
	var context any
	if tag, ok := d.Context(); ok {
		context = tag
	}
	var config any
	if d.EventConfig != nil {
		config = d.EventConfig.Fields()
	}
	return map[string]any{
		"name":             d.Name,
		"context":          context,
		"composedContexts": d.ComposedContexts,
		"originalEvent":    d.OriginalEvent,
		"eventConfig":      config,
	}
}

// MarshalJSON implements json.Marshaler.
func (d *Detail) MarshalJSON() ([]byte, error) {
	var context *string
	if tag, ok := d.Context(); ok {
		context = &tag
	}
	return json.Marshal(struct {
		Name             string   `json:"name"`
		Context          *string  `json:"context"`
		ComposedContexts []string `json:"composedContexts"`
		OriginalEvent    Event    `json:"originalEvent"`
		EventConfig      *Rule    `json:"eventConfig"`
	}{d.Name, context, d.ComposedContexts, d.OriginalEvent, d.EventConfig})
}

// Emission is a derived event published by the engine.
type Emission struct {
	ID     EmissionID `json:"id"`
	Type   string     `json:"type"`
	At     time.Time  `json:"at"`
	Detail *Detail    `json:"detail"`
}

// Resource limits enforced by the compiler and the path interpreter.
const (
	// MaxPathDepth bounds template placeholder paths.
	// 16 segments is far beyond the fixed payload schema's real depth.
	MaxPathDepth = 16

	// MaxTreeDepth bounds recursion while flattening nested rule trees.
	// Groups nested deeper are dropped like any other malformed entry.
	MaxTreeDepth = 32
)
