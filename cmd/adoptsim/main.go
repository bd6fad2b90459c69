package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"adoptsim/internal/config"
	"adoptsim/internal/embedding"
	"adoptsim/internal/fixtures"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
	"adoptsim/internal/store"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Loaded once in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adoptsim",
	Short: "adoptsim - agentic framework adoption simulator",
	Long: `adoptsim simulates how a company absorbs a corporate framework adoption
(Scrum, SAFe, COBIT, OKRs) through LLM-driven stakeholder personas grounded
in a retrieval store, with a critic, a difficulty controller and racing
agents keeping the runs honest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")

	rootCmd.AddCommand(indexCmd, queryCmd, simulateCmd, raceCmd, warmupCmd, selftestCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED WIRING
// =============================================================================

func buildProvider() (llm.Provider, error) {
	return llm.FromConfig(cfg.LLM)
}

func buildStore() (*store.Store, error) {
	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    firstKey(cfg.LLM.GeminiAPIKeys),
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	return store.New(cfg.Store.Path, engine), nil
}

func loadFixtures() *fixtures.Set {
	set, err := fixtures.Load(cfg.Fixtures.Dir)
	if err != nil {
		logger.Warn("fixture load failed, using built-in profiles", zap.Error(err))
		return &fixtures.Set{}
	}
	return set
}

func firstKey(keys []string) string {
	if len(keys) > 0 {
		return keys[0]
	}
	return ""
}
