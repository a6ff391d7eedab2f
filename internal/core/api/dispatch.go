package api

import (
	"context"
	"fmt"

	"github.com/solatis/eventfilter/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

// Dispatch feeds events to the engine.
//
// Request: a single event {type, fields, path} or a batch {events: [...]}.
// Response: {handled, defaultPrevented, emitted: [{id, type, name, context}]}
// for a single event, {results: [...], handledCount} for a batch.
// An event is handled when it caused at least one derived event.
// A batch is decoded in full before the first event reaches the engine, so
// a malformed event rejects the whole batch without side effects.
func (s *FilterService) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.AsMap()

	batch, isBatch := raw["events"]
	if !isBatch {
		rec, err := DecodeEvent(raw)
		if err != nil {
			return nil, toStatus(err)
		}
		if err := ctx.Err(); err != nil {
			return nil, toStatus(err)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.encode(s.dispatchOne(rec))
	}

	events, ok := batch.([]any)
	if !ok {
		return nil, toStatus(fmt.Errorf("%w: events must be a list", ErrInvalidEvent))
	}
	if len(events) > s.cfg.MaxBatchSize {
		return nil, toStatus(fmt.Errorf("%w: %d events, maximum %d", ErrBatchTooLarge, len(events), s.cfg.MaxBatchSize))
	}

	records := make([]*types.Record, 0, len(events))
	for i, ev := range events {
		rec, err := DecodeEvent(ev)
		if err != nil {
			return nil, toStatus(fmt.Errorf("event %d: %w", i, err))
		}
		records = append(records, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]any, 0, len(records))
	handled := 0
	for _, rec := range records {
		result := s.dispatchOne(rec)
		if result["handled"] == true {
			handled++
		}
		results = append(results, result)
	}

	return s.encode(map[string]any{
		"results":      results,
		"handledCount": handled,
	})
}

func (s *FilterService) dispatchOne(rec *types.Record) map[string]any {
	prevented, emitted := s.dispatchLocked(rec)

	views := make([]any, 0, len(emitted))
	for _, em := range emitted {
		views = append(views, emissionView(em))
	}
	s.log.Debug().
		Str("type", rec.EventType).
		Bool("prevented", prevented).
		Int("emitted", len(emitted)).
		Msg("event dispatched")

	return map[string]any{
		"handled":          len(emitted) > 0,
		"defaultPrevented": prevented,
		"emitted":          views,
	}
}

func (s *FilterService) encode(v map[string]any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func emissionView(em types.Emission) map[string]any {
	view := map[string]any{
		"id":      string(em.ID),
		"type":    em.Type,
		"name":    "",
		"context": nil,
	}
	if em.Detail != nil {
		view["name"] = em.Detail.Name
		if tag, ok := em.Detail.Context(); ok {
			view["context"] = tag
		}
	}
	return view
}
