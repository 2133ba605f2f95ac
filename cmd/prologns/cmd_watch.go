package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prologns/internal/watch"
	"prologns/pkg/isolated"
)

var watchGoal string

// watchCmd reconsults a knowledge base whenever it changes
var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Re-run a goal each time a knowledge base changes",
	Long: `Loads the file into a fresh session and runs the goal. Every time the file
changes on disk the file is loaded into another fresh session and the goal is
run again, so removed clauses disappear from the results. The previous
session's namespace is released once the new one has loaded. Stop with Ctrl+C.

Example:
  prologns watch family.pl --goal "father(X, Y)"`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchGoal, "goal", "", "Goal to run after each load (required)")
	watchCmd.MarkFlagRequired("goal")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", isolated.ErrSourceNotFound, path)
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// current is only touched from reload, which the watcher never runs
	// concurrently.
	var current *isolated.Prolog
	defer func() {
		if current != nil {
			release(current)
		}
	}()

	reload := func(ctx context.Context, file string) error {
		p, err := newSession(eng, "")
		if err != nil {
			return err
		}
		if err := p.Consult(ctx, file, isolated.CatchErrors(cfg.Consult.CatchErrors)); err != nil {
			release(p)
			writeSection(out, outputFormat, file, nil, err)
			return err
		}
		if current != nil {
			release(current)
		}
		current = p

		sols, err := p.Query(ctx, watchGoal, queryOptions(cmd)...).Collect()
		logger.Debug("Reloaded", zap.String("path", file), zap.String("module", p.Module()), zap.Int("solutions", len(sols)))
		return writeSection(out, outputFormat, file, sols, err)
	}

	if err := reload(ctx, path); err != nil {
		logger.Warn("Initial load failed", zap.String("path", path), zap.Error(err))
	}

	w, err := watch.New([]string{path}, cfg.GetDebounce(), reload)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	<-ctx.Done()
	stats := w.Stats()
	logger.Info("Watch stopped", zap.Int("reloads", stats.Reloads), zap.Int("errors", stats.Errors))
	return nil
}

func release(p *isolated.Prolog) {
	if err := p.Release(); err != nil {
		logger.Warn("Release failed", zap.String("module", p.Module()), zap.Error(err))
	}
}
