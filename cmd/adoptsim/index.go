package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adoptsim/internal/fixtures"
	"adoptsim/internal/store"
)

var (
	indexCollection string
	indexDocID      string
)

var indexCmd = &cobra.Command{
	Use:   "index [file...]",
	Short: "Index documents or the fixture bundle into the retrieval store",
	Long: `With file arguments, chunks and indexes each document into the chosen
collection. Without arguments, indexes the configured fixture bundle
(profiles, events, playbooks, metrics docs) into their collections.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexCollection, "collection", "c", store.CollectionUserDocs, "target collection for file arguments")
	indexCmd.Flags().StringVar(&indexDocID, "id", "", "document id (single file only, default: derived from filename)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	s, err := buildStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()

	if len(args) == 0 {
		set := loadFixtures()
		if err := fixtures.IndexAll(ctx, s, set); err != nil {
			return fmt.Errorf("index fixtures: %w", err)
		}
		logger.Info("fixture bundle indexed",
			zap.Int("profiles", len(set.Profiles)),
			zap.Int("events", len(set.Events)),
			zap.Int("playbooks", len(set.Playbooks)),
			zap.Int("metrics_docs", len(set.MetricsDocs)))
		return nil
	}

	if indexDocID != "" && len(args) > 1 {
		return fmt.Errorf("--id only applies to a single file")
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docID := indexDocID
		if docID == "" {
			docID = filepath.Base(path)
		}
		id, chunks, err := s.IndexDocument(ctx, indexCollection, docID, string(data), map[string]string{"source": path})
		if err != nil {
			// Indexing continues; one bad document should not abort a batch.
			logger.Error("indexing failed", zap.String("file", path), zap.Error(err))
			continue
		}
		fmt.Printf("indexed %s -> %s (%d chunks, collection %s)\n", path, id, chunks, indexCollection)
	}
	return nil
}
