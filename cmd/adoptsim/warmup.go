package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"adoptsim/internal/critic"
	"adoptsim/internal/fixtures"
	"adoptsim/internal/orchestrator"
	"adoptsim/internal/sim"
	"adoptsim/internal/warmup"
)

var (
	warmupIterations int
	warmupTarget     float64
	warmupTurns      int
)

var warmupCmd = &cobra.Command{
	Use:   "warmup [situation]",
	Short: "Search generation parameters before a real run",
	Long: `Probes the temperature / top-k / retrieval-mode space with short trial
simulations and reports the best-scoring parameter set. Use the result
to calibrate the config before an expensive full run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWarmup,
}

func init() {
	warmupCmd.Flags().IntVarP(&warmupIterations, "iterations", "i", 10, "maximum trial iterations")
	warmupCmd.Flags().Float64Var(&warmupTarget, "target", 85, "stop once a trial reaches this score")
	warmupCmd.Flags().IntVar(&warmupTurns, "turns", 2, "turns per trial simulation")
}

func runWarmup(cmd *cobra.Command, args []string) error {
	situation := strings.Join(args, " ")

	provider, err := buildProvider()
	if err != nil {
		return err
	}
	set := loadFixtures()
	stakeholders := fixtures.Hydrate(nil, set)
	if len(stakeholders) == 0 {
		stakeholders = fixtures.BuiltinProfiles()
	}

	score := newRunScorer(critic.New(provider), situation)
	trial := func(ctx context.Context, params sim.OptimizedParameters) (float64, error) {
		opts := orchestrator.Options{
			Provider:      provider,
			Stakeholders:  stakeholders,
			Events:        set.Events,
			Temperature:   params.Temperature,
			Seed:          cfg.Simulation.Seed,
			RetrievalTopK: params.TopK,
			RetrievalMode: params.RetrievalMode,
		}
		if params.RetrievalMode != sim.RetrievalNone {
			s, err := buildStore()
			if err != nil {
				return 0, err
			}
			defer s.Close()
			opts.Retriever = s
		}
		orch, err := orchestrator.New(opts)
		if err != nil {
			return 0, err
		}
		result, err := orch.RunSimulation(ctx, situation, warmupTurns)
		if err != nil {
			return 0, err
		}
		return score(ctx, result), nil
	}

	result, err := warmup.New(cfg.Simulation.Seed).Run(cmd.Context(), sim.WarmupConfig{
		MaxIterations:      warmupIterations,
		TargetPlausibility: warmupTarget,
	}, trial)
	if err != nil {
		return err
	}

	fmt.Printf("best after %d iterations: score %.1f\n", result.IterationsUsed, result.FinalScore)
	fmt.Printf("optimal: temperature %.1f, top-k %d, retrieval %s\n",
		result.OptimalParams.Temperature, result.OptimalParams.TopK, result.OptimalParams.RetrievalMode)
	for _, p := range result.ConvergenceHistory {
		fmt.Printf("  iter %2d: %.1f (T=%.1f k=%d %s)\n",
			p.Iteration, p.Score, p.Params.Temperature, p.Params.TopK, p.Params.RetrievalMode)
	}
	return nil
}
