// internal/rules/engine.go
package rules

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/types"
)

/*
 * Matching engine.
 *
 * Owns the compiled rule table and the single pending sequence-reset timer.
 * For every incoming event it evaluates all rules (advancing sequence
 * cursors as a side effect), selects the most specific terminal match and
 * publishes one derived event per result type template.
 *
 * Selection order:
 *   1. longest context chain
 *   2. smallest ancestry index of the rule's own first context tag
 *   3. table order (first encountered)
 *
 * Timer discipline: at most one pending reset. Every reschedule or clear
 * cancels the previous timer and bumps a generation counter, so a callback
 * that already fired for a superseded timer finds a newer generation and
 * does nothing.
 *
 * Locking: the mutex serializes OnEvent, configuration changes and timer
 * callbacks. The sink is called after the lock is released so listeners may
 * call back into the engine.
 */

// Sink receives derived events.
type Sink interface {
	Publish(eventType string, detail *types.Detail)
}

// BroadcastType is the constant result type every match is also published under.
const BroadcastType = "FilterEvent"

// DefaultSequenceTimeLimit is how long a partially completed sequence stays armed.
const DefaultSequenceTimeLimit = 720 * time.Millisecond

// DefaultResultTypes publishes "<context>.<name>" plus the broadcast type.
var DefaultResultTypes = []string{"{{eventConfig.context[0]}}.{{name}}", BroadcastType}

// Settings tune the engine.
type Settings struct {
	// ResultTypes are templates for derived event types. Nil selects
	// DefaultResultTypes; an empty non-nil slice disables emission.
	ResultTypes []string
	// SequenceTimeLimit resets partially completed sequences. Zero disables the timer.
	SequenceTimeLimit time.Duration
	// SelectorFields lists fields whose string mask values are selectors.
	// Nil selects DefaultSelectorFields.
	SelectorFields []string
}

// DefaultSettings returns settings with default values.
func DefaultSettings() Settings {
	return Settings{
		ResultTypes:       slices.Clone(DefaultResultTypes),
		SequenceTimeLimit: DefaultSequenceTimeLimit,
		SelectorFields:    slices.Clone(DefaultSelectorFields),
	}
}

// Result is the outcome of one OnEvent call.
type Result struct {
	Handled    bool        // a rule completed; the source event was consumed
	Advanced   int         // sequence cursors moved forward by this event
	Rule       *types.Rule // winning rule when Handled
	EventTypes []string    // derived event types published when Handled
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithSink sets where derived events are published.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine matches events against the compiled rule table.
type Engine struct {
	mu         sync.Mutex
	rules      []*types.Rule
	settings   Settings
	selectors  map[string]bool
	sink       Sink
	scheduler  Scheduler
	pending    TimerHandle
	generation uint64
	log        zerolog.Logger
	metrics    *Metrics
}

// NewEngine compiles source and returns an engine using it.
func NewEngine(source any, opts ...Option) *Engine {
	e := &Engine{
		settings:  DefaultSettings(),
		scheduler: ClockScheduler{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.settings.ResultTypes == nil {
		e.settings.ResultTypes = slices.Clone(DefaultResultTypes)
	}
	if e.settings.SelectorFields == nil {
		e.settings.SelectorFields = slices.Clone(DefaultSelectorFields)
	}
	e.selectors = make(map[string]bool, len(e.settings.SelectorFields))
	for _, f := range e.settings.SelectorFields {
		e.selectors[f] = true
	}

	e.SetConfig(source)
	return e
}

// SetConfig discards the current table and compiles a new one from source.
func (e *Engine) SetConfig(source any) {
	compiled := Compile(source)

	e.mu.Lock()
	e.cancelTimerLocked()
	e.rules = compiled
	e.mu.Unlock()

	e.metrics.setRules(len(compiled))
	e.log.Debug().Int("rules", len(compiled)).Msg("rule table compiled")
}

// Rules returns the live rule table. Cursor fields change as events arrive.
func (e *Engine) Rules() []*types.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules
}

// Snapshot returns copies of the rules with their cursor state at the time
// of the call. Step masks are shared and must not be modified.
func (e *Engine) Snapshot() []*types.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.Rule, len(e.rules))
	for i, r := range e.rules {
		c := *r
		out[i] = &c
	}
	return out
}

// Settings returns the effective settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// OnEvent evaluates one event. ancestry lists the context tags of the event's
// origin, nearest first.
func (e *Engine) OnEvent(ev types.Event, ancestry []string) Result {
	e.mu.Lock()

	index := contextIndex(ancestry)
	var (
		winner   *types.Rule
		advanced int
	)
	for _, rule := range e.rules {
		switch e.evaluateLocked(index, rule, ev) {
		case outcomeAdvanced:
			advanced++
		case outcomeMatched:
			if winner == nil || prefer(rule, winner, index) {
				winner = rule
			}
		}
	}

	if winner == nil {
		e.mu.Unlock()
		e.metrics.observeEvent(ev.Type(), false)
		return Result{Advanced: advanced}
	}

	e.clearSequenceLocked()
	ev.PreventDefault()

	detail := newDetail(ev, ancestry, winner)
	eventTypes := make([]string, 0, len(e.settings.ResultTypes))
	for _, tmpl := range e.settings.ResultTypes {
		eventTypes = append(eventTypes, ResolveTemplate(tmpl, detail))
	}
	sink := e.sink
	e.mu.Unlock()

	e.metrics.observeEvent(ev.Type(), true)
	e.metrics.observeReset(ResetReasonMatch)
	e.log.Debug().
		Str("rule", winner.Name).
		Strs("context", winner.Context).
		Strs("types", eventTypes).
		Msg("rule matched")

	if sink != nil {
		for _, t := range eventTypes {
			sink.Publish(t, detail)
			e.metrics.observeEmission(t)
		}
	}

	return Result{
		Handled:    true,
		Advanced:   advanced,
		Rule:       winner,
		EventTypes: eventTypes,
	}
}

// ClearSequence resets every multi-step rule to its first step and cancels
// the pending reset timer. Event sources call it for disruptive events.
func (e *Engine) ClearSequence() {
	e.mu.Lock()
	e.clearSequenceLocked()
	e.mu.Unlock()
	e.metrics.observeReset(ResetReasonDisrupt)
}

// ResetRule resets a single rule's cursor and cancels the pending reset timer.
func (e *Engine) ResetRule(rule *types.Rule) {
	e.mu.Lock()
	e.cancelTimerLocked()
	rule.Reset()
	e.mu.Unlock()
	e.metrics.observeReset(ResetReasonRule)
}

// Close cancels the pending reset timer.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancelTimerLocked()
	e.mu.Unlock()
}

func (e *Engine) clearSequenceLocked() {
	e.cancelTimerLocked()
	for _, rule := range e.rules {
		if rule.IsSequence() {
			rule.Reset()
		}
	}
}

// restartTimerLocked replaces the pending reset timer.
func (e *Engine) restartTimerLocked() {
	e.cancelTimerLocked()
	if e.settings.SequenceTimeLimit <= 0 {
		return
	}
	gen := e.generation
	e.pending = e.scheduler.Schedule(e.settings.SequenceTimeLimit, func() {
		e.expire(gen)
	})
}

func (e *Engine) cancelTimerLocked() {
	e.generation++
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

// expire is the timer callback. Superseded timers are ignored.
func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.clearSequenceLocked()
	e.mu.Unlock()

	e.metrics.observeReset(ResetReasonTimeout)
	e.log.Debug().Msg("sequence time limit reached")
}

// contextIndex maps each ancestry tag to its position; first occurrence wins.
func contextIndex(ancestry []string) map[string]int {
	index := make(map[string]int, len(ancestry))
	for i, tag := range ancestry {
		if _, ok := index[tag]; !ok {
			index[tag] = i
		}
	}
	return index
}

// prefer reports whether candidate beats current: longer context first, then
// the nearer first context tag. Ties keep current.
func prefer(candidate, current *types.Rule, index map[string]int) bool {
	if len(candidate.Context) != len(current.Context) {
		return len(candidate.Context) > len(current.Context)
	}
	if len(candidate.Context) == 0 {
		return false
	}
	return index[candidate.Context[0]] < index[current.Context[0]]
}

func newDetail(ev types.Event, ancestry []string, rule *types.Rule) *types.Detail {
	return &types.Detail{
		Name:             rule.Name,
		ComposedContexts: append([]string{}, ancestry...),
		OriginalEvent:    ev,
		EventConfig:      rule,
	}
}
