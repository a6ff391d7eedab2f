// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/eventfilter/internal/types"
)

/*
 * Per-rule match predicate.
 *
 * Evaluation flow for one rule and one event:
 *   0. Inert rules (compiled from malformed entries) never match
 *   1. Mask: every mask field must match the event field (selector fields
 *      by selector, everything else by LooseEqual); short-circuits on the
 *      first mismatch
 *   2. Context: the rule's context tags must appear in the ancestry index
 *      at non-decreasing positions, i.e. in nearest-to-farthest order
 *   3. Sequence: a multi-step rule not yet on its last step advances its
 *      cursor, rearms the reset timer and consumes the event, but does not
 *      count as a match
 *
 * The predicate mutates the rule's cursor, so it runs under the engine lock.
 */

type outcome int

const (
	outcomeNone outcome = iota
	outcomeAdvanced
	outcomeMatched
)

func (e *Engine) evaluateLocked(index map[string]int, rule *types.Rule, ev types.Event) outcome {
	if rule.Inert {
		return outcomeNone
	}
	if !e.maskMatches(rule.Mask, ev) {
		return outcomeNone
	}
	if !contextMatches(rule.Context, index) {
		return outcomeNone
	}

	if rule.IsSequence() && rule.SequenceIndex < rule.SequenceLastIndex {
		rule.SequenceIndex++
		rule.Mask = rule.Sequence[rule.SequenceIndex]
		e.restartTimerLocked()
		ev.PreventDefault()

		e.metrics.observeAdvance(rule.Name)
		e.log.Debug().
			Str("rule", rule.Name).
			Int("step", rule.SequenceIndex).
			Int("last", rule.SequenceLastIndex).
			Msg("sequence advanced")
		return outcomeAdvanced
	}

	return outcomeMatched
}

// maskMatches checks every mask field against the event.
func (e *Engine) maskMatches(mask types.Mask, ev types.Event) bool {
	for field, expected := range mask {
		actual, _ := ev.Field(field)
		if selector, ok := expected.(string); ok && e.selectors[field] {
			if !matchSelector(actual, selector, ev.Path()) {
				return false
			}
			continue
		}
		if !LooseEqual(actual, expected) {
			return false
		}
	}
	return true
}

// contextMatches enforces that every context tag is present in the ancestry
// at a position no nearer than the previous tag.
func contextMatches(context []string, index map[string]int) bool {
	minIndex := 0
	for _, tag := range context {
		i, ok := index[tag]
		if !ok || i < minIndex {
			return false
		}
		minIndex = i
	}
	return true
}
