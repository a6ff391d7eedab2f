package types

import (
	"encoding/json"
	"testing"
)

func TestDetail_Context(t *testing.T) {
	tests := []struct {
		name     string
		composed []string
		wantTag  string
		wantOK   bool
		wantJSON string
	}{
		{"no context", nil, "", false, `null`},
		{"nearest tag", []string{"editor", "app"}, "editor", true, `"editor"`},
		{"empty tag is a tag", []string{"", "app"}, "", true, `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Detail{Name: "save", ComposedContexts: tt.composed}

			tag, ok := d.Context()
			if tag != tt.wantTag || ok != tt.wantOK {
				t.Errorf("Context() = (%q, %v), want (%q, %v)", tag, ok, tt.wantTag, tt.wantOK)
			}

			data, err := json.Marshal(d)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var decoded map[string]json.RawMessage
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got := string(decoded["context"]); got != tt.wantJSON {
				t.Errorf("context = %s, want %s", got, tt.wantJSON)
			}

			field := d.Fields()["context"]
			if tt.wantOK && field != tt.wantTag {
				t.Errorf(`Fields()["context"] = %v, want %q`, field, tt.wantTag)
			}
			if !tt.wantOK && field != nil {
				t.Errorf(`Fields()["context"] = %v, want nil`, field)
			}
		})
	}
}

func TestRecord_TargetFallsBackToOrigin(t *testing.T) {
	origin := Node{"tag": "button"}
	rec := NewRecord("click", nil, origin, Node{"tag": "div"})

	got, ok := rec.Field("target")
	if !ok {
		t.Fatalf("Field(target) missing")
	}
	if n, _ := got.(Node); n["tag"] != "button" {
		t.Errorf("Field(target) = %v, want origin node", got)
	}

	explicit := NewRecord("click", map[string]any{"target": "x"}, origin)
	if got, _ := explicit.Field("target"); got != "x" {
		t.Errorf("Field(target) = %v, want explicit field", got)
	}

	if _, ok := NewRecord("click", nil).Field("target"); ok {
		t.Errorf("Field(target) found without path")
	}
}
