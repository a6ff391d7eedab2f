// Package filter wires an event source to the matching engine.
//
// Listened event types are routed to Engine.OnEvent. Every other known event
// type, except those in the same category as a listened type, disrupts
// in-progress sequences through Engine.ClearSequence: a click in the middle
// of a key chord cancels the chord, another key press does not.
package filter

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/rules"
	"github.com/solatis/eventfilter/internal/types"
)

// DefaultContextAttribute is the node attribute naming a context tag.
const DefaultContextAttribute = "data-context"

// DefaultListen is the event type routed to the engine by default.
var DefaultListen = []string{"keydown"}

// Category groups related event types.
type Category struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Types []string `mapstructure:"types" yaml:"types"`
}

// DefaultCategories returns the built-in event type categories.
func DefaultCategories() []Category {
	return []Category{
		{Name: "keyboard", Types: []string{"keydown", "keypress", "keyup"}},
		{Name: "mouse", Types: []string{"click", "mousedown", "mouseup"}},
		{Name: "mouse2", Types: []string{"auxclick", "contextmenu", "dblclick", "wheel"}},
		{Name: "touch", Types: []string{"touchstart", "touchend", "touchcancel"}},
		{Name: "drag", Types: []string{"dragstart", "dragend"}},
		{Name: "nav", Types: []string{"focus", "blur"}},
	}
}

// Settings configure a Filter.
type Settings struct {
	Listen           []string
	Categories       []Category
	ContextAttribute string
}

// DefaultSettings returns the default filter settings.
func DefaultSettings() Settings {
	return Settings{
		Listen:           slices.Clone(DefaultListen),
		Categories:       DefaultCategories(),
		ContextAttribute: DefaultContextAttribute,
	}
}

// Source delivers raw events. *bus.Bus implements it.
type Source interface {
	Subscribe(eventType string, h bus.Handler) func()
}

// Engine is the part of rules.Engine the filter drives.
type Engine interface {
	OnEvent(ev types.Event, ancestry []string) rules.Result
	ClearSequence()
}

// Filter routes events from a Source to an Engine.
type Filter struct {
	mu            sync.Mutex
	source        Source
	engine        Engine
	settings      Settings
	log           zerolog.Logger
	unsubscribers []func()
}

// New creates a detached filter. Call Attach to start routing events.
func New(source Source, engine Engine, settings Settings, log zerolog.Logger) *Filter {
	if settings.ContextAttribute == "" {
		settings.ContextAttribute = DefaultContextAttribute
	}
	return &Filter{
		source:   source,
		engine:   engine,
		settings: settings,
		log:      log,
	}
}

// Attach replaces any previous subscriptions with handlers for the current settings.
// It returns the listened and the disruptive event types.
func (f *Filter) Attach() (listened, disruptive []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.detachLocked()

	listened = normalizeListen(f.settings.Listen)
	if len(listened) == 0 {
		return nil, nil
	}

	categoryOf := make(map[string]int)
	var known []string
	for i, c := range f.settings.Categories {
		for _, t := range c.Types {
			if _, ok := categoryOf[t]; !ok {
				categoryOf[t] = i
				known = append(known, t)
			}
		}
	}

	excluded := make(map[string]bool)
	for _, t := range listened {
		f.unsubscribers = append(f.unsubscribers, f.source.Subscribe(t, f.handle))
		excluded[t] = true
		if i, ok := categoryOf[t]; ok {
			for _, sibling := range f.settings.Categories[i].Types {
				excluded[sibling] = true
			}
		}
	}

	for _, t := range known {
		if excluded[t] {
			continue
		}
		f.unsubscribers = append(f.unsubscribers, f.source.Subscribe(t, f.disrupt))
		disruptive = append(disruptive, t)
	}

	f.log.Info().
		Strs("listen", listened).
		Strs("disrupt", disruptive).
		Msg("filter attached")
	return listened, disruptive
}

// Detach removes every subscription made by Attach.
func (f *Filter) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachLocked()
}

func (f *Filter) detachLocked() {
	for _, unsubscribe := range f.unsubscribers {
		unsubscribe()
	}
	f.unsubscribers = nil
}

func (f *Filter) handle(ev types.Event) {
	ancestry := ContextChain(ev.Path(), f.settings.ContextAttribute)
	res := f.engine.OnEvent(ev, ancestry)
	if res.Handled {
		f.log.Debug().
			Str("type", ev.Type()).
			Str("rule", res.Rule.Name).
			Strs("ancestry", ancestry).
			Msg("event handled")
	}
}

func (f *Filter) disrupt(ev types.Event) {
	f.engine.ClearSequence()
}

// ContextChain collects the non-empty values of attr along path, nearest node first.
func ContextChain(path []types.Node, attr string) []string {
	chain := make([]string, 0, len(path))
	for _, node := range path {
		if v := node[attr]; v != "" {
			chain = append(chain, v)
		}
	}
	return chain
}

// normalizeListen splits whitespace separated entries and drops duplicates.
func normalizeListen(listen []string) []string {
	var out []string
	for _, entry := range listen {
		for _, t := range strings.Fields(entry) {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}
