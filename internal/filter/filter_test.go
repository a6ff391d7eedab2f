package filter

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/rules"
	"github.com/solatis/eventfilter/internal/types"
)

type fakeEngine struct {
	events    []types.Event
	ancestry  [][]string
	clears    int
	handleAll bool
}

func (e *fakeEngine) OnEvent(ev types.Event, ancestry []string) rules.Result {
	e.events = append(e.events, ev)
	e.ancestry = append(e.ancestry, ancestry)
	if e.handleAll {
		ev.PreventDefault()
		return rules.Result{Handled: true, Rule: &types.Rule{Name: "any"}}
	}
	return rules.Result{}
}

func (e *fakeEngine) ClearSequence() { e.clears++ }

func TestFilter_AttachDefaults(t *testing.T) {
	b := bus.New()
	engine := &fakeEngine{}
	f := New(b, engine, DefaultSettings(), zerolog.Nop())

	listened, disruptive := f.Attach()

	assert.Equal(t, []string{"keydown"}, listened)
	assert.NotContains(t, disruptive, "keydown")
	assert.NotContains(t, disruptive, "keypress")
	assert.NotContains(t, disruptive, "keyup")
	assert.Contains(t, disruptive, "click")
	assert.Contains(t, disruptive, "blur")
	assert.Len(t, disruptive, 14)

	b.Dispatch(types.NewRecord("keydown", nil))
	b.Dispatch(types.NewRecord("keyup", nil))
	b.Dispatch(types.NewRecord("click", nil))
	b.Dispatch(types.NewRecord("unknown", nil))

	assert.Len(t, engine.events, 1)
	assert.Equal(t, 1, engine.clears)
}

func TestFilter_ListenAcrossCategories(t *testing.T) {
	settings := DefaultSettings()
	settings.Listen = []string{"keydown click", "keydown"}
	f := New(bus.New(), &fakeEngine{}, settings, zerolog.Nop())

	listened, disruptive := f.Attach()

	assert.Equal(t, []string{"keydown", "click"}, listened)
	assert.Equal(t, []string{"auxclick", "contextmenu", "dblclick", "wheel",
		"touchstart", "touchend", "touchcancel", "dragstart", "dragend", "focus", "blur"}, disruptive)
}

func TestFilter_UncategorizedListenExcludesOnlyItself(t *testing.T) {
	settings := DefaultSettings()
	settings.Listen = []string{"gamepad"}
	f := New(bus.New(), &fakeEngine{}, settings, zerolog.Nop())

	listened, disruptive := f.Attach()

	assert.Equal(t, []string{"gamepad"}, listened)
	assert.Len(t, disruptive, 17)
}

func TestFilter_EmptyListen(t *testing.T) {
	settings := DefaultSettings()
	settings.Listen = []string{"  "}
	b := bus.New()
	f := New(b, &fakeEngine{}, settings, zerolog.Nop())

	listened, disruptive := f.Attach()

	assert.Empty(t, listened)
	assert.Empty(t, disruptive)
	assert.Empty(t, b.Types())
}

func TestFilter_ReattachAndDetach(t *testing.T) {
	b := bus.New()
	engine := &fakeEngine{}
	f := New(b, engine, DefaultSettings(), zerolog.Nop())

	f.Attach()
	f.Attach()
	b.Dispatch(types.NewRecord("keydown", nil))
	require.Len(t, engine.events, 1, "re-attaching must not double subscribe")

	f.Detach()
	b.Dispatch(types.NewRecord("keydown", nil))
	b.Dispatch(types.NewRecord("click", nil))

	assert.Len(t, engine.events, 1)
	assert.Zero(t, engine.clears)
	assert.Empty(t, b.Types())
}

func TestFilter_Ancestry(t *testing.T) {
	b := bus.New()
	engine := &fakeEngine{handleAll: true}
	f := New(b, engine, DefaultSettings(), zerolog.Nop())
	f.Attach()

	ev := types.NewRecord("keydown", map[string]any{"key": "s"},
		types.Node{"tag": "textarea"},
		types.Node{"tag": "div", "data-context": "panel"},
		types.Node{"tag": "section", "data-context": ""},
		types.Node{"tag": "main", "data-context": "editor"},
	)
	prevented := b.Dispatch(ev)

	assert.True(t, prevented)
	require.Len(t, engine.ancestry, 1)
	assert.Equal(t, []string{"panel", "editor"}, engine.ancestry[0])
}

func TestContextChain(t *testing.T) {
	path := []types.Node{
		{"ctx": "a"},
		{"other": "b"},
		{"ctx": "c"},
	}

	assert.Equal(t, []string{"a", "c"}, ContextChain(path, "ctx"))
	assert.Empty(t, ContextChain(path, "missing"))
	assert.Empty(t, ContextChain(nil, "ctx"))
}

func TestFilter_WithEngine(t *testing.T) {
	b := bus.New()
	engine := rules.NewEngine(map[string]any{
		"editor": map[string]any{
			"gi": []any{map[string]any{"key": "g"}, map[string]any{"key": "i"}},
		},
	}, rules.WithSink(b))
	defer engine.Close()

	var emitted []string
	b.Listen(bus.AnyType, func(em types.Emission) { emitted = append(emitted, em.Type) })

	f := New(b, engine, DefaultSettings(), zerolog.Nop())
	f.Attach()

	path := types.Node{"data-context": "editor"}
	b.Dispatch(types.NewRecord("keydown", map[string]any{"key": "g"}, path))
	b.Dispatch(types.NewRecord("click", nil, path))
	b.Dispatch(types.NewRecord("keydown", map[string]any{"key": "i"}, path))
	assert.Empty(t, emitted, "click between the steps disrupts the sequence")

	b.Dispatch(types.NewRecord("keydown", map[string]any{"key": "g"}, path))
	b.Dispatch(types.NewRecord("keyup", map[string]any{"key": "g"}, path))
	b.Dispatch(types.NewRecord("keydown", map[string]any{"key": "i"}, path))
	assert.Equal(t, []string{"editor.gi", rules.BroadcastType}, emitted)
}
