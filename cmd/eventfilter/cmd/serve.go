package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/core/api"
	"github.com/solatis/eventfilter/internal/core/db"
	"github.com/solatis/eventfilter/internal/core/server"
	"github.com/solatis/eventfilter/internal/core/stream"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC filter service with metrics and event stream",
	Long: `Start the gRPC filter service.

The rules file is re-read on SIGHUP. When a journal database is configured
every derived event is recorded; run 'eventfilter migrate up' first.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("http-addr", ":9090", "metrics and event stream address")
	serveCmd.Flags().String("rules", "", "rules file (YAML or JSON)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.Server.HTTPAddr, _ = cmd.Flags().GetString("http-addr")
	}
	if cmd.Flags().Changed("rules") {
		cfg.Filter.RulesFile, _ = cmd.Flags().GetString("rules")
	}

	source, err := loadRuleSource(cfg.Filter.RulesFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := newPipeline(&cfg.Filter, source, registry, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer p.Close()

	if cfg.Database.URL != "" {
		closeJournal, err := attachJournal(ctx, cfg.Database.URL, p.bus)
		if err != nil {
			return err
		}
		defer closeJournal()
	}

	hub, err := stream.NewHub(log.Logger, registry)
	if err != nil {
		return fmt.Errorf("failed to create event stream: %w", err)
	}
	p.bus.Listen(bus.AnyType, hub.Listener)

	service, err := api.NewFilterService(p.bus, p.engine, &cfg.Server, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	httpServer, err := server.NewHTTPServer(cfg.Server.HTTPAddr, registry, hub, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	log.Info().
		Str("version", Version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Int("rules", len(p.engine.Rules())).
		Msg("starting eventfilter")

	errChan := make(chan error, 2)
	go func() { errChan <- grpcServer.Start(ctx) }()
	go func() { errChan <- httpServer.Start() }()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case err := <-errChan:
			return err
		case <-hup:
			reloadRules(p, cfg.Filter.RulesFile)
		case <-ctx.Done():
			log.Info().Msg("shutting down gracefully")
			hub.Close()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("http shutdown")
			}
			return grpcServer.Shutdown(shutdownCtx)
		}
	}
}

// reloadRules replaces the rule table. A failed reload keeps the current table.
func reloadRules(p *pipeline, path string) {
	source, err := loadRuleSource(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("rules reload failed, keeping current table")
		return
	}
	p.engine.SetConfig(source)
	log.Info().Str("file", path).Int("rules", len(p.engine.Rules())).Msg("rules reloaded")
}

// attachJournal records every emission published on b.
func attachJournal(ctx context.Context, url string, b *bus.Bus) (func(), error) {
	database, err := db.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'eventfilter migrate up' first", s.ID)
		}
	}

	journal, err := db.NewJournal(database, log.Logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	unlisten := b.Listen(bus.AnyType, journal.Listener(ctx))

	return func() {
		unlisten()
		database.Close()
	}, nil
}
