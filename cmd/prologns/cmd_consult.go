package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prologns/pkg/isolated"
)

var (
	consultModule string
	consultGoal   string
	consultCatch  bool
)

// consultCmd loads knowledge bases into one session
var consultCmd = &cobra.Command{
	Use:   "consult [file...]",
	Short: "Load knowledge bases into a session and optionally run a goal",
	Long: `Loads every file into the same session, in order. Each file is staged
through a fresh temporary file, so the same path can be loaded repeatedly.

Example:
  prologns consult family.pl rules.pl --goal "grandparent(tom, X)"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConsult,
}

func init() {
	consultCmd.Flags().StringVar(&consultModule, "module", "", "Namespace to use instead of a generated one")
	consultCmd.Flags().StringVar(&consultGoal, "goal", "", "Goal to run after loading")
	consultCmd.Flags().BoolVar(&consultCatch, "catch-errors", false, "Ignore engine errors while loading")
}

func runConsult(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	p, err := newSession(eng, consultModule)
	if err != nil {
		return err
	}

	catch := cfg.Consult.CatchErrors
	if cmd.Flags().Changed("catch-errors") {
		catch = consultCatch
	}
	for _, path := range args {
		logger.Info("Consulting", zap.String("module", p.Module()), zap.String("path", path))
		if err := p.Consult(ctx, path, isolated.CatchErrors(catch)); err != nil {
			return fmt.Errorf("failed to consult %s: %w", path, err)
		}
	}

	if consultGoal == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d file(s) into %s\n", len(args), p.Module())
		return nil
	}

	sols, err := p.Query(ctx, consultGoal, queryOptions(cmd)...).Collect()
	if err != nil {
		return err
	}
	return writeSolutions(cmd.OutOrStdout(), outputFormat, sols)
}
