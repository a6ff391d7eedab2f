// internal/rules/template_test.go
package rules

import (
	"testing"

	"github.com/solatis/eventfilter/internal/types"
)

func TestResolveTemplate(t *testing.T) {
	detail := &types.Detail{
		Name:             "save",
		ComposedContexts: []string{"editor", "app"},
		OriginalEvent:    types.NewRecord("keydown", map[string]any{"key": "s", "keyCode": 83.0}),
		EventConfig: &types.Rule{
			Name:    "save",
			Context: []string{"editor"},
		},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "default result type", tmpl: "{{eventConfig.context[0]}}.{{name}}", want: "editor.save"},
		{name: "no placeholders", tmpl: "FilterEvent", want: "FilterEvent"},
		{name: "number drops fraction", tmpl: "key-{{originalEvent.keyCode}}", want: "key-83"},
		{name: "list joins", tmpl: "{{composedContexts}}", want: "editor,app"},
		{name: "missing", tmpl: "{{nope}}:{{name}}", want: "*:save"},
		{name: "out of range", tmpl: "{{composedContexts[5]}}", want: "*"},
		{name: "list length", tmpl: "depth-{{composedContexts.length}}", want: "depth-2"},
		{name: "repeated", tmpl: "{{name}}/{{name}}", want: "save/save"},
		{name: "not a placeholder", tmpl: "{{ name }}", want: "{{ name }}"},
		{name: "unbalanced", tmpl: "{{name", want: "{{name"},
		{name: "separators only", tmpl: "{{.}}", want: "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTemplate(tt.tmpl, detail); got != tt.want {
				t.Errorf("ResolveTemplate(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestResolveTemplate_GlobalRule(t *testing.T) {
	detail := &types.Detail{
		Name:        "help",
		EventConfig: &types.Rule{Name: "help", Context: []string{}},
	}

	if got := ResolveTemplate("{{eventConfig.context[0]}}.{{name}}", detail); got != "*.help" {
		t.Errorf("ResolveTemplate() = %q, want %q", got, "*.help")
	}
	if got := ResolveTemplate("{{context}}", detail); got != "*" {
		t.Errorf("ResolveTemplate() = %q, want %q", got, "*")
	}
}
