package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prologns/pkg/isolated"
)

var (
	queryConsult []string
	queryText    string
	queryModule  string
	queryMax     int
	queryCatch   bool
	queryRaw     bool
)

// queryCmd runs one goal in a fresh session
var queryCmd = &cobra.Command{
	Use:   "query [goal]",
	Short: "Run a goal in a fresh isolated session",
	Long: `Creates a session, loads any knowledge bases given with --consult or --text,
then runs the goal and prints every solution.

Example:
  prologns query "father(michael, X)" --consult family.pl
  prologns query "bird(tweety)" --text "bird(tweety)."
  prologns query "member(X, [a, b, c])" --max 1 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryConsult, "consult", nil, "Knowledge-base file to load first (repeatable)")
	queryCmd.Flags().StringVar(&queryText, "text", "", "Knowledge-base text to load first")
	queryCmd.Flags().StringVar(&queryModule, "module", "", "Namespace to use instead of a generated one")
	queryCmd.Flags().IntVar(&queryMax, "max", -1, "Maximum number of solutions (negative = unlimited)")
	queryCmd.Flags().BoolVar(&queryCatch, "catch-errors", true, "Swallow engine errors instead of failing")
	queryCmd.Flags().BoolVar(&queryRaw, "raw", false, "Print raw terms instead of normalized values")
}

func runQuery(cmd *cobra.Command, args []string) error {
	goal := args[0]
	ctx, cancel := commandContext(cmd)
	defer cancel()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	p, err := newSession(eng, queryModule)
	if err != nil {
		return err
	}
	logger.Info("Running query", zap.String("module", p.Module()), zap.String("goal", goal))

	for _, path := range queryConsult {
		if err := p.Consult(ctx, path, isolated.CatchErrors(cfg.Consult.CatchErrors)); err != nil {
			return fmt.Errorf("failed to consult %s: %w", path, err)
		}
	}
	if queryText != "" {
		if err := p.ConsultText(ctx, queryText, isolated.CatchErrors(cfg.Consult.CatchErrors)); err != nil {
			return fmt.Errorf("failed to consult text: %w", err)
		}
	}

	sols, err := p.Query(ctx, goal, queryOptions(cmd)...).Collect()
	if err != nil {
		return err
	}
	logger.Debug("Query finished", zap.Int("solutions", len(sols)))
	return writeSolutions(cmd.OutOrStdout(), outputFormat, sols)
}

// queryOptions merges config defaults with the flags the user actually set.
func queryOptions(cmd *cobra.Command) []isolated.CallOption {
	opts := []isolated.CallOption{
		isolated.MaxResults(cfg.Query.MaxResults),
		isolated.CatchErrors(cfg.Query.CatchErrors),
		isolated.Normalize(cfg.Query.Normalize),
	}
	if f := cmd.Flags().Lookup("max"); f != nil && f.Changed {
		opts = append(opts, isolated.MaxResults(queryMax))
	}
	if f := cmd.Flags().Lookup("catch-errors"); f != nil && f.Changed {
		opts = append(opts, isolated.CatchErrors(queryCatch))
	}
	if queryRaw {
		opts = append(opts, isolated.Normalize(false))
	}
	return opts
}

// newSession opens a session on eng. An empty module falls back to the
// configured one, then to a generated name.
func newSession(eng isolated.Engine, module string) (*isolated.Prolog, error) {
	if module == "" {
		module = cfg.Session.Module
	}
	opts := []isolated.Option{isolated.WithTempDir(cfg.Consult.TempDir)}
	if module != "" {
		opts = append(opts, isolated.WithModule(module))
	}
	return isolated.New(eng, opts...)
}

// commandContext derives the operation context from the command.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d := operationTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
