package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/solatis/eventfilter/internal/bus"
	"github.com/solatis/eventfilter/internal/core/api"
	"github.com/solatis/eventfilter/internal/core/config"
	"github.com/solatis/eventfilter/internal/types"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file...]",
	Short: "Feed recorded events through the filter",
	Long: `Feed JSON events ({"type", "fields", "path"}, one per line) through the
filter and print every derived event as a JSON line.

Files default to stdin. With --addr the events are sent to a running server
instead of a local engine, in batches of --batch.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("rules", "", "rules file (YAML or JSON); local mode only")
	replayCmd.Flags().String("addr", "", "gRPC address of a running server")
	replayCmd.Flags().Int("batch", 100, "events per Dispatch call in remote mode")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	events, err := readEventFiles(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr != "" {
		batch, _ := cmd.Flags().GetInt("batch")
		return replayRemote(ctx, addr, batch, events, cmd.OutOrStdout())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("rules") {
		cfg.Filter.RulesFile, _ = cmd.Flags().GetString("rules")
	}
	source, err := loadRuleSource(cfg.Filter.RulesFile)
	if err != nil {
		return err
	}
	return replayLocal(&cfg.Filter, source, events, cmd.OutOrStdout())
}

// readEventFiles decodes every file in order; "-" or no files reads stdin.
func readEventFiles(paths []string, stdin io.Reader) ([]map[string]any, error) {
	if len(paths) == 0 {
		return readEvents(stdin)
	}

	var all []map[string]any
	for _, p := range paths {
		var r io.Reader = stdin
		if p != "-" {
			f, err := os.Open(p)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		events, err := readEvents(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// readEvents decodes a stream of JSON events and validates each one.
func readEvents(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	var events []map[string]any
	for {
		var raw map[string]any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", len(events), err)
		}
		if _, err := api.DecodeEvent(raw); err != nil {
			return nil, fmt.Errorf("event %d: %w", len(events), err)
		}
		events = append(events, raw)
	}
}

func replayLocal(cfg *config.FilterConfig, source any, events []map[string]any, out io.Writer) error {
	p, err := newPipeline(cfg, source, nil, log.Logger)
	if err != nil {
		return err
	}
	defer p.Close()

	enc := json.NewEncoder(out)
	var writeErr error
	p.bus.Listen(bus.AnyType, func(em types.Emission) {
		if writeErr == nil {
			writeErr = enc.Encode(em)
		}
	})

	handled := 0
	for _, raw := range events {
		rec, err := api.DecodeEvent(raw)
		if err != nil {
			return err
		}
		if p.bus.Dispatch(rec) {
			handled++
		}
		if writeErr != nil {
			return writeErr
		}
	}

	log.Info().Int("events", len(events)).Int("prevented", handled).Msg("replay finished")
	return nil
}

func replayRemote(ctx context.Context, addr string, batch int, events []map[string]any, out io.Writer) error {
	if batch <= 0 {
		return fmt.Errorf("--batch must be positive")
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()
	client := api.NewFilterClient(conn)

	enc := json.NewEncoder(out)
	for start := 0; start < len(events); start += batch {
		end := min(start+batch, len(events))

		list := make([]any, 0, end-start)
		for _, ev := range events[start:end] {
			list = append(list, ev)
		}
		req, err := structpb.NewStruct(map[string]any{"events": list})
		if err != nil {
			return fmt.Errorf("failed to encode events %d-%d: %w", start, end-1, err)
		}

		resp, err := client.Dispatch(ctx, req)
		if err != nil {
			return fmt.Errorf("dispatch events %d-%d: %w", start, end-1, err)
		}

		results, _ := resp.AsMap()["results"].([]any)
		for _, r := range results {
			result, _ := r.(map[string]any)
			emitted, _ := result["emitted"].([]any)
			for _, em := range emitted {
				if err := enc.Encode(em); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
