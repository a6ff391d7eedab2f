// Package api provides the gRPC Filter service: event dispatch into the
// engine and read access to the compiled rule table.
package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/core/config"
	"github.com/solatis/eventfilter/internal/rules"
	"github.com/solatis/eventfilter/internal/types"
)

// FilterService implements FilterServer.
// Thin orchestration layer over the bus (dispatch) and the engine (rules).
type FilterService struct {
	bus    *bus.Bus
	engine *rules.Engine
	cfg    *config.ServerConfig
	log    zerolog.Logger

	// mu serializes dispatches so events reach the engine in arrival order
	// and emissions can be attributed to the request that caused them.
	mu sync.Mutex

	collectMu  sync.Mutex
	collecting bool
	collected  []types.Emission
	stopListen func()

	eventsDir string
	jsonlMu   sync.Mutex
}

// NewFilterService creates service instance with dependencies.
// Auto-creates the event log directory under DataDir unless DataDir is empty.
func NewFilterService(b *bus.Bus, engine *rules.Engine, cfg *config.ServerConfig, log zerolog.Logger) (*FilterService, error) {
	if b == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	s := &FilterService{
		bus:    b,
		engine: engine,
		cfg:    cfg,
		log:    log,
	}

	if cfg.DataDir != "" {
		s.eventsDir = filepath.Join(cfg.DataDir, "events")
		if err := os.MkdirAll(s.eventsDir, 0o755); err != nil {
			return nil, err
		}
	}

	s.stopListen = b.Listen(bus.AnyType, s.collect)
	return s, nil
}

// Close detaches the service from the bus.
func (s *FilterService) Close() {
	s.stopListen()
}

func (s *FilterService) collect(em types.Emission) {
	s.collectMu.Lock()
	defer s.collectMu.Unlock()
	if s.collecting {
		s.collected = append(s.collected, em)
	}
}

// dispatchLocked sends one record through the bus and returns what it caused.
// Caller holds s.mu.
func (s *FilterService) dispatchLocked(rec *types.Record) (prevented bool, emitted []types.Emission) {
	s.collectMu.Lock()
	s.collecting = true
	s.collected = nil
	s.collectMu.Unlock()

	prevented = s.bus.Dispatch(rec)

	s.collectMu.Lock()
	emitted = s.collected
	s.collecting = false
	s.collected = nil
	s.collectMu.Unlock()

	s.appendEventLog(rec)
	return prevented, emitted
}

// appendEventLog writes the record to the daily JSONL event log.
// Best-effort debugging aid and input for `eventfilter replay`.
func (s *FilterService) appendEventLog(rec *types.Record) {
	if s.eventsDir == "" {
		return
	}
	name := filepath.Join(s.eventsDir, time.Now().UTC().Format("2006-01-02.jsonl"))

	s.jsonlMu.Lock()
	defer s.jsonlMu.Unlock()

	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("event log unavailable")
		return
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("event log write failed")
	}
}
