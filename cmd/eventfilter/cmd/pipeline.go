package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/core/config"
	"github.com/solatis/eventfilter/internal/filter"
	"github.com/solatis/eventfilter/internal/rules"
)

// pipeline is the in-process event path: bus -> filter -> engine -> bus.
type pipeline struct {
	bus    *bus.Bus
	engine *rules.Engine
	filter *filter.Filter
}

// newPipeline wires an engine for cfg. registerer may be nil.
func newPipeline(cfg *config.FilterConfig, source any, registerer prometheus.Registerer, log zerolog.Logger) (*pipeline, error) {
	metrics, err := rules.NewMetrics(registerer)
	if err != nil {
		return nil, err
	}

	b := bus.New(bus.WithLogger(log))
	engine := rules.NewEngine(source,
		rules.WithSettings(cfg.EngineSettings()),
		rules.WithSink(b),
		rules.WithLogger(log),
		rules.WithMetrics(metrics),
	)

	f := filter.New(b, engine, cfg.FilterSettings(), log)
	f.Attach()

	return &pipeline{bus: b, engine: engine, filter: f}, nil
}

func (p *pipeline) Close() {
	p.filter.Detach()
	p.engine.Close()
}
