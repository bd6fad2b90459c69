package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"adoptsim/internal/fixtures"
	"adoptsim/internal/orchestrator"
	"adoptsim/internal/roi"
	"adoptsim/internal/sim"
)

var (
	scenarioFile  string
	simTurns      int
	simNames      []string
	simNoRetrieve bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [situation]",
	Short: "Run a multi-turn adoption simulation",
	Long: `Runs the turn loop against the given situation. A scenario file
(--scenario, YAML) calibrates company parameters and can carry the
situation and stakeholder cast; command-line arguments override it.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&scenarioFile, "scenario", "s", "", "YAML scenario file")
	simulateCmd.Flags().IntVarP(&simTurns, "turns", "t", 0, "number of turns (default from config)")
	simulateCmd.Flags().StringSliceVar(&simNames, "stakeholders", nil, "stakeholder ids or names to include")
	simulateCmd.Flags().BoolVar(&simNoRetrieve, "no-retrieval", false, "run without the retrieval store")
}

// scenarioSpec is the YAML schema of a scenario file.
type scenarioSpec struct {
	Situation    string               `yaml:"situation"`
	Turns        int                  `yaml:"turns"`
	Stakeholders []string             `yaml:"stakeholders"`
	Config       sim.SimulationConfig `yaml:"config"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	var spec scenarioSpec
	if scenarioFile != "" {
		data, err := os.ReadFile(scenarioFile)
		if err != nil {
			return fmt.Errorf("read scenario: %w", err)
		}
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse scenario: %w", err)
		}
	}

	if len(args) > 0 {
		spec.Situation = strings.Join(args, " ")
	}
	if spec.Situation == "" {
		return fmt.Errorf("a situation is required (argument or scenario file)")
	}
	if simTurns > 0 {
		spec.Turns = simTurns
	}
	if spec.Turns <= 0 {
		spec.Turns = cfg.Simulation.Turns
	}
	if len(simNames) > 0 {
		spec.Stakeholders = simNames
	}

	provider, err := buildProvider()
	if err != nil {
		return err
	}

	set := loadFixtures()
	stakeholders := fixtures.Hydrate(spec.Stakeholders, set)
	if len(stakeholders) == 0 {
		stakeholders = fixtures.BuiltinProfiles()
	}

	opts := orchestrator.Options{
		Provider:     provider,
		Config:       spec.Config,
		Stakeholders: stakeholders,
		Events:       set.Events,
		Temperature:  cfg.Simulation.Temperature,
		Seed:         cfg.Simulation.Seed,
	}
	if !simNoRetrieve {
		s, err := buildStore()
		if err != nil {
			return err
		}
		defer s.Close()
		opts.Retriever = s
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}

	result, err := orch.RunSimulation(cmd.Context(), spec.Situation, spec.Turns)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	printRun(result)
	return nil
}

func printRun(result *orchestrator.RunResult) {
	state := result.State
	fmt.Printf("=== simulation finished after %d turns ===\n", state.Turn)
	fmt.Printf("morale %.0f | velocity %.0f | confidence %.0f | difficulty %.1f\n",
		state.Morale, state.Velocity, state.Confidence, state.DifficultyScalar)
	if len(state.TriggeredEvents) > 0 {
		fmt.Printf("events: %s\n", strings.Join(state.TriggeredEvents, ", "))
	}

	fmt.Println()
	for _, out := range state.History {
		fmt.Printf("[turn %d] %s (%s): %s\n", out.Turn, out.Stakeholder, out.Response.Emotion, out.Response.Text)
		if out.AgenticMetrics != nil {
			fmt.Printf("         cycle quality %.0f, %d tokens, routed %s\n",
				out.AgenticMetrics.QualityPerCycle, out.AgenticMetrics.TotalTokens, out.AgenticMetrics.RouterChoice)
		}
	}

	fmt.Println()
	fmt.Print(roi.Summary(result.Projection))
}
