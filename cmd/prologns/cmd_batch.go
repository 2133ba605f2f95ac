package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prologns/pkg/isolated"
)

var (
	batchGoal        string
	batchConcurrency int
	batchFailFast    bool
)

// batchCmd runs one goal against many knowledge bases
var batchCmd = &cobra.Command{
	Use:   "batch [file...]",
	Short: "Run a goal against each knowledge base in its own session",
	Long: `Every file gets a fresh session on the same shared engine. Sessions run
concurrently and cannot see each other's clauses. Output is grouped per file
in argument order.

Example:
  prologns batch --goal "bird(X)" zoo1.pl zoo2.pl zoo3.pl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchGoal, "goal", "", "Goal to run in every session (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "Maximum number of sessions running at once")
	batchCmd.Flags().BoolVar(&batchFailFast, "fail-fast", false, "Stop at the first failing knowledge base")
	batchCmd.MarkFlagRequired("goal")
}

type batchResult struct {
	sols []isolated.Solution
	err  error
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	results := make([]batchResult, len(args))

	g, gctx := errgroup.WithContext(ctx)
	if batchConcurrency > 0 {
		g.SetLimit(batchConcurrency)
	}
	for i, path := range args {
		g.Go(func() error {
			sols, err := runOne(gctx, eng, path, cmd)
			results[i] = batchResult{sols: sols, err: err}

			if err != nil {
				logger.Warn("Batch entry failed", zap.String("path", path), zap.Error(err))
				if batchFailFast {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		})
	}
	groupErr := g.Wait()

	failed := 0
	for i, path := range args {
		if results[i].err != nil {
			failed++
		}
		if err := writeSection(cmd.OutOrStdout(), outputFormat, path, results[i].sols, results[i].err); err != nil {
			return err
		}
	}
	if groupErr != nil {
		return groupErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d knowledge bases failed", failed, len(args))
	}
	return nil
}

func runOne(ctx context.Context, eng isolated.Engine, path string, cmd *cobra.Command) ([]isolated.Solution, error) {
	p, err := isolated.New(eng, isolated.WithTempDir(cfg.Consult.TempDir))
	if err != nil {
		return nil, err
	}
	if err := p.Consult(ctx, path, isolated.CatchErrors(cfg.Consult.CatchErrors)); err != nil {
		return nil, err
	}
	return p.Query(ctx, batchGoal, queryOptions(cmd)...).Collect()
}
