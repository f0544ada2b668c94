package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/slotwise/internal/engine"
	"github.com/me/slotwise/pkg/model"
	"github.com/spf13/cobra"
)

// engineFlags are shared by the commands that run the engine locally.
type engineFlags struct {
	seed    uint64
	workers int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Fix the optimizer seed for reproducible runs (0 = random)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent candidate scorers (0 = one per CPU)")
}

func (f *engineFlags) engine() *engine.Engine {
	var opts []engine.Option
	if f.seed != 0 {
		opts = append(opts, engine.WithSeed(f.seed))
	}
	if f.workers > 0 {
		opts = append(opts, engine.WithWorkers(f.workers))
	}
	return engine.New(logger, opts...)
}

// interruptible returns a context cancelled on SIGINT/SIGTERM or after timeout.
func interruptible(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newPlanCmd() *cobra.Command {
	var (
		file       string
		algorithm  string
		iterations int
		output     string
		timeout    time.Duration
		ef         engineFlags
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute a schedule from a request file",
		Long: `Reads a scheduling request (tasks, resources, constraints, time_range and
options) from a YAML or JSON file and prints the resulting schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			req, err := loadRequest(file)
			if err != nil {
				return err
			}
			if algorithm != "" {
				req.Options.Algorithm = model.Algorithm(algorithm)
			}
			if iterations > 0 {
				req.Options.OptimizationIterations = iterations
			}

			ctx, cancel := interruptible(cmd.Context(), timeout)
			defer cancel()

			sched, err := ef.engine().Schedule(ctx, req)
			if err != nil {
				return fmt.Errorf("schedule: %w", err)
			}

			w := cmd.OutOrStdout()
			if output == outputJSON {
				return writeJSON(w, sched)
			}
			renderSchedule(w, sched)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request file (YAML or JSON)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Override the algorithm (greedy, optimal, balanced, fast)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Override the optimizer iteration count")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format (text, json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	ef.register(cmd)
	cmd.MarkFlagRequired("file")

	return cmd
}
