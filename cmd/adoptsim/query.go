package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"adoptsim/internal/router"
	"adoptsim/internal/store"
)

var queryTopK int

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Classify a query and run it through hybrid retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 5, "number of results")
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	ctx := cmd.Context()

	provider, err := buildProvider()
	if err != nil {
		return err
	}

	classification := router.New(provider).Classify(ctx, query)
	fmt.Printf("mode: %s (confidence %.2f)\n", classification.Mode, classification.Confidence)
	fmt.Printf("collections: %v\n", classification.Collections)
	if classification.RefinedQuery != "" {
		fmt.Printf("refined: %s\n", classification.RefinedQuery)
	}

	if !router.ShouldUseRAG(classification) {
		fmt.Println("pure persona query: retrieval skipped")
		return nil
	}

	s, err := buildStore()
	if err != nil {
		return err
	}
	defer s.Close()

	hits, err := s.HybridSearch(ctx, router.RetrievalQuery(classification, query), classification.Collections, queryTopK, nil)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		fmt.Println("no results (is the store indexed?)")
		return nil
	}

	fmt.Println()
	fmt.Println(store.GenerateContext(hits))
	return nil
}
