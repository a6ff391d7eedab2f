package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/eventfilter/internal/rules"
	"github.com/solatis/eventfilter/internal/types"
)

func TestLoadRules_PreservesOrder(t *testing.T) {
	path := writeFile(t, "rules.yaml", `
editor:
  zoom-in: {key: "+", ctrlKey: true}
  save: {key: s, ctrlKey: true}
  konami:
    - {key: ArrowUp}
    - {key: ArrowDown}
global:
  help: {key: F1}
`)

	source, err := LoadRules(path)
	require.NoError(t, err)

	compiled := rules.Compile(source)
	var names []string
	for _, r := range compiled {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"zoom-in", "save", "konami", "help"}, names)
	assert.Equal(t, []string{"editor"}, compiled[0].Context)
	assert.Equal(t, true, compiled[1].Mask["ctrlKey"])
	assert.Equal(t, 1, compiled[2].SequenceLastIndex)
}

func TestLoadRules_JSON(t *testing.T) {
	path := writeFile(t, "rules.json", `[
  {"name": "save", "context": ["editor"], "mask": {"key": "s", "keyCode": 83}},
  {"name": "quit", "mask": {"key": "q"}, "description": "leave"}
]`)

	source, err := LoadRules(path)
	require.NoError(t, err)

	compiled := rules.Compile(source)
	require.Len(t, compiled, 2)
	assert.Equal(t, "save", compiled[0].Name)
	assert.Equal(t, 83, compiled[0].Mask["keyCode"])
	assert.Equal(t, "leave", compiled[1].Extra["description"])
}

func TestLoadRules_Aliases(t *testing.T) {
	source, err := DecodeRules(strings.NewReader(`
base: &ctrl {ctrlKey: true}
editor:
  copy: {<<: *ctrl, key: c}
  paste: *ctrl
`))
	require.NoError(t, err)

	obj, ok := source.(types.Object)
	require.True(t, ok)
	editor, _ := obj.Get("editor")
	paste, _ := editor.(types.Object).Get("paste")
	assert.Equal(t, types.Object{{Key: "ctrlKey", Value: true}}, paste)
	copyRule, _ := editor.(types.Object).Get("copy")
	assert.Equal(t, types.Object{{Key: "ctrlKey", Value: true}, {Key: "key", Value: "c"}}, copyRule)
}

func TestLoadRules_Empty(t *testing.T) {
	source, err := LoadRules("")
	require.NoError(t, err)
	assert.Nil(t, source)

	source, err = LoadRules(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Nil(t, source)
	assert.Empty(t, rules.Compile(source))
}

func TestLoadRules_Errors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = LoadRules(writeFile(t, "bad.yaml", "editor: [unclosed"))
	assert.Error(t, err)
}

func TestDecodeRules_DepthLimit(t *testing.T) {
	doc := strings.Repeat("[", 200) + strings.Repeat("]", 200)

	_, err := DecodeRules(strings.NewReader(doc))
	assert.True(t, errors.Is(err, ErrRulesDepth), "got %v", err)
}
