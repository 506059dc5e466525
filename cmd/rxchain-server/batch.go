package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rxchain/rxchain/internal/config"
	"github.com/rxchain/rxchain/internal/domain/batch"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/clock"
)

// batchCmd inspects batches directly on the configured ledger.
func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Inspect batches on the ledger",
	}

	run := func(fn func(ctx context.Context, svc *batch.Service) (interface{}, error)) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a := &app{cfg: cfg, logger: newLogger(cfg.Env), clock: clock.NewSystem(), tracer: noop.NewTracerProvider()}
		if err := a.openLedger(); err != nil {
			return err
		}
		defer a.Close(ctx)

		ctx = auth.WithCaller(ctx, &auth.Caller{ID: "cli", Role: auth.RoleAdmin})
		out, err := fn(ctx, batch.NewService(a.ledger, nil, nil, a.clock, a.logger))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <batch-id>",
		Short: "Print the current state of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *batch.Service) (interface{}, error) {
				return svc.GetBatch(ctx, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history <batch-id>",
		Short: "Print every recorded version of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, svc *batch.Service) (interface{}, error) {
				return svc.GetBatchHistory(ctx, args[0])
			})
		},
	})
	return cmd
}
