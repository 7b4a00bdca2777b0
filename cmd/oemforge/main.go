// Command oemforge runs the maintenance-schedule extraction pipeline
// described in spec.md: for every pending powertrain configuration it
// prompts an LLM, repairs/parses the response, canonicalizes and validates
// the extracted items, and persists the result transactionally.
//
// Grounded on codenerd's cmd/nerd entry point (internal/_cmdref/main_ref.go):
// a single cobra root command, a zap logger built in PersistentPreRunE and
// synced in PersistentPostRun, with --verbose raising its level. This
// command trims that shape to the flags spec.md §6 names rather than the
// teacher's full subcommand tree, since the pipeline has exactly one mode
// of operation (process pending configs), not a family of CLI verbs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oemforge/oemforge/internal/config"
	"github.com/oemforge/oemforge/internal/llmclient"
	"github.com/oemforge/oemforge/internal/obslog"
	"github.com/oemforge/oemforge/internal/pipeline"
	"github.com/oemforge/oemforge/internal/store"
	"github.com/oemforge/oemforge/internal/taxonomy"
	"github.com/oemforge/oemforge/internal/validate"
)

var (
	flagMake    string
	flagAll     bool
	flagDryRun  bool
	flagLimit   int
	flagVerbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oemforge",
	Short: "LLM-driven OEM maintenance-schedule extraction pipeline",
	Long: `oemforge synthesizes a prompt per powertrain configuration, asks an LLM
for its maintenance schedule, repairs and parses the response, canonicalizes
the extracted items against the taxonomy, validates the intervals, and
persists the result transactionally.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if flagVerbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		workspace, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		if err := obslog.Initialize(workspace, flagVerbose); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		obslog.CloseAll()
	},
	RunE: runPipeline,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&flagMake, "make", "", "Process only configs whose make equals NAME (case-insensitive)")
	rootCmd.Flags().BoolVar(&flagAll, "all", false, "Process every pending config")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Build prompts; skip the LLM call and all persistence")
	rootCmd.Flags().IntVar(&flagLimit, "limit", 0, "Process at most N configs (0 means unlimited)")
}

// runPipeline wires every collaborator and runs the driver once. Exit code
// is 0 on normal completion (including per-config errors that were caught
// and logged) and 1 on missing credentials or argument errors, per
// spec.md §6. Startup failures before any config is processed (no
// DATABASE_URL, store connect/migrate failure, catalog or rule load
// failure, pending-taxonomy load failure) also exit 1.
func runPipeline(cmd *cobra.Command, args []string) error {
	if flagMake == "" && !flagAll {
		return fmt.Errorf("exactly one of --make NAME or --all is required")
	}
	if flagMake != "" && flagAll {
		return fmt.Errorf("--make and --all are mutually exclusive")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}

	items, err := store.LoadMaintenanceItems(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load maintenance item catalog: %w", err)
	}
	rules, err := store.LoadValidationRules(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load validation rules: %w", err)
	}

	canon := taxonomy.New(items, cfg.FuzzyThreshold)
	validator := validate.New(rules, cfg.FuzzyThreshold)
	llm := llmclient.New(llmclient.Config{
		APIKey:           cfg.GeminiAPIKey,
		Model:            cfg.GeminiModel,
		MaxOutputTokens:  cfg.MaxOutputTokens,
		HTTPMaxRetries:   cfg.HTTPMaxRetries,
		HTTPBackoffBase:  cfg.HTTPBackoffBase,
		ParseMaxAttempts: cfg.ParseMaxAttempts,
	})

	summary, err := pipeline.Run(ctx, pipeline.Deps{
		DB:        db,
		LLM:       llm,
		Canon:     canon,
		Validator: validator,
		Config:    cfg,
	}, pipeline.Options{
		Make:   flagMake,
		DryRun: flagDryRun,
		Limit:  flagLimit,
	})
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	logger.Info("pipeline run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("loaded", summary.Loaded),
		zap.Int("flagged", summary.Flagged),
		zap.Int("rejected", summary.Rejected),
	)
	fmt.Printf("processed=%d loaded=%d flagged=%d rejected=%d\n",
		summary.Processed, summary.Loaded, summary.Flagged, summary.Rejected)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
