package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adoptsim/internal/router"
	"adoptsim/internal/sim"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Check query classification against a labeled set",
	Long: `Runs the configured provider against a small labeled query set and
reports classification accuracy. Useful for validating a provider or
prompt change before trusting it with real runs.`,
	RunE: runSelftest,
}

// labeledQuery pairs a query with its expected routing mode.
type labeledQuery struct {
	query string
	mode  sim.QueryMode
}

var selftestSet = []labeledQuery{
	{"Como o CEO cético reagiria ao Scrum?", sim.ModePurePersona},
	{"How would the tech lead react to mandatory daily standups?", sim.ModePurePersona},
	{"What is the expected ROI of adopting SAFe over 12 months?", sim.ModeFinancial},
	{"Calculate the break-even month for a Scrum rollout with high tech debt", sim.ModeFinancial},
	{"Compare Scrum and Kanban for a 40-person fintech", sim.ModeComparative},
	{"Which framework suits a company that failed an agile transformation before?", sim.ModeComparative},
	{"What risks could derail the adoption in the first quarter?", sim.ModeEventTrigger},
	{"What happens if the sponsor resigns mid-rollout?", sim.ModeEventTrigger},
	{"Simulate the full first month of OKR adoption across all departments", sim.ModeHybrid},
	{"How do stakeholder reactions interact with the projected costs?", sim.ModeHybrid},
}

func runSelftest(cmd *cobra.Command, args []string) error {
	provider, err := buildProvider()
	if err != nil {
		return err
	}
	r := router.New(provider)
	ctx := cmd.Context()

	correct := 0
	for _, tc := range selftestSet {
		got := r.Classify(ctx, tc.query)
		status := "FAIL"
		if got.Mode == tc.mode {
			correct++
			status = "ok"
		}
		fmt.Printf("[%s] %-90q want %-14s got %s\n", status, tc.query, tc.mode, got.Mode)
	}

	accuracy := float64(correct) / float64(len(selftestSet)) * 100
	fmt.Printf("\naccuracy: %d/%d (%.0f%%)\n", correct, len(selftestSet), accuracy)
	if accuracy < 70 {
		fmt.Println("warning: classification accuracy below 70%, routing will degrade to hybrid often")
	}
	return nil
}
