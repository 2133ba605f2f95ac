package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prologns/internal/config"
	"prologns/internal/engine"
	"prologns/internal/engine/ichiban"
	"prologns/internal/engine/mangle"
	"prologns/internal/logging"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	backend      string
	tempDir      string
	timeout      time.Duration
	outputFormat string

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prologns",
	Short: "prologns - isolated sessions on a shared logic engine",
	Long: `prologns runs goals against a shared Prolog (or Datalog) engine where every
session lives in its own namespace. Knowledge bases are staged through fresh
temporary files, and results are printed as normalized values.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if backend != "" {
			cfg.Engine.Backend = backend
		}
		if tempDir != "" {
			cfg.Consult.TempDir = tempDir
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		logger.Debug("configuration loaded",
			zap.String("config", configPath),
			zap.String("backend", cfg.Engine.Backend))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Engine backend: prolog or mangle (or set PROLOGNS_BACKEND env)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "Directory for staged knowledge-base files (or set PROLOGNS_TEMP_DIR env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Operation timeout (0 uses engine.query_timeout)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", formatText, "Output format: text, json or yaml")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(consultCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newEngine builds the shared engine for the configured backend.
func newEngine(c *config.Config) (engine.Engine, error) {
	switch c.Engine.Backend {
	case config.BackendProlog:
		return ichiban.New(ichiban.DefaultConfig()), nil
	case config.BackendMangle:
		mc := mangle.DefaultConfig()
		if c.Engine.FactLimit > 0 {
			mc.FactLimit = c.Engine.FactLimit
		}
		return mangle.New(mc), nil
	default:
		return nil, fmt.Errorf("unknown engine backend: %s", c.Engine.Backend)
	}
}

// operationTimeout returns the --timeout flag or the configured query timeout.
func operationTimeout() time.Duration {
	if timeout > 0 {
		return timeout
	}
	return cfg.GetQueryTimeout()
}
