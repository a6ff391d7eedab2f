package types

import "testing"

func TestNode_Matches(t *testing.T) {
	node := Node{"tag": "button", "id": "save", "class": "btn primary", "data-context": "editor"}

	tests := []struct {
		selector string
		want     bool
	}{
		{"button", true},
		{"BUTTON", true},
		{"a", false},
		{"#save", true},
		{"#cancel", false},
		{".btn", true},
		{".primary.btn", true},
		{".secondary", false},
		{"button#save.primary", true},
		{"[data-context]", true},
		{"[data-context=editor]", true},
		{`[data-context="editor"]`, true},
		{"[data-context=viewer]", false},
		{"[title]", false},
		{"*", true},
		{"a, #save", true},
		{"a, #cancel", false},
		{"form button", false},
		{"form > button", false},
		{"", false},
		{"[unterminated", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			if got := node.Matches(tt.selector); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.selector, got, tt.want)
			}
		})
	}
}

func TestMatchPath(t *testing.T) {
	path := []Node{
		{"tag": "button", "id": "ok"},
		{"tag": "div", "class": "panel"},
		{"tag": "form", "data-context": "dialog"},
	}

	tests := []struct {
		selector string
		want     bool
	}{
		{".panel button", true},
		{"div > button", true},
		{"form > button", false},
		{"form button#ok", true},
		{"[data-context=dialog] .panel > button", true},
		{".sidebar button", false},
		{"div.panel", false},
		{"div + button", false},
		{"button:first-child", true},
		{"div >", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			if got := MatchPath(path, tt.selector); got != tt.want {
				t.Errorf("MatchPath(%q) = %v, want %v", tt.selector, got, tt.want)
			}
		})
	}

	if MatchPath(nil, "*") {
		t.Errorf("MatchPath(nil) = true, want false")
	}
}
