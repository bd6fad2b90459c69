package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adoptsim/internal/embedding"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"), embedding.NewHashEngine(64))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := "## Scrum Basics\n\n" + strings.Repeat("Sprints are fixed-length iterations with a planning ceremony and a retrospective. ", 10) +
		"\n\n## Budgeting\n\n" + strings.Repeat("The adoption budget covers training hours and coaching fees. ", 10)

	id, chunks, err := s.IndexDocument(ctx, CollectionPlaybooks, "scrum-guide", doc, map[string]string{"framework": "scrum"})
	require.NoError(t, err)
	assert.Equal(t, "scrum-guide", id)
	assert.Positive(t, chunks)

	results, err := s.Search(ctx, CollectionPlaybooks, "sprint planning ceremony", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "Sprints")

	// Distances ascend.
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchRespectsCollectionBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexRecord(ctx, CollectionEvents, "ev1", "A key engineer resigns during the rollout.", nil))
	require.NoError(t, s.IndexRecord(ctx, CollectionMetrics, "m1", "ROI is computed from value minus cost over cost.", nil))

	results, err := s.Search(ctx, CollectionEvents, "engineer resigns", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, CollectionEvents, results[0].Collection)
}

func TestMetadataFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexRecord(ctx, CollectionProfiles, "p1", "A skeptical CEO guards the margins.", map[string]string{"kind": "non-tech"}))
	require.NoError(t, s.IndexRecord(ctx, CollectionProfiles, "p2", "A skeptical tech lead guards the team.", map[string]string{"kind": "tech"}))

	results, err := s.Search(ctx, CollectionProfiles, "skeptical", 10, Filter{"kind": {"tech"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p2", results[0].DocumentID)

	both, err := s.Search(ctx, CollectionProfiles, "skeptical", 10, Filter{"kind": {"tech", "non-tech"}})
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestHybridSearchMergesAndTruncates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, text := range []string{
		"Sprint velocity drops during the first adoption month.",
		"Velocity metrics feed the ROI projection.",
		"A velocity crisis event halves throughput.",
	} {
		col := []string{CollectionPlaybooks, CollectionMetrics, CollectionEvents}[i]
		require.NoError(t, s.IndexRecord(ctx, col, string(rune('a'+i)), text, nil))
	}

	results, err := s.HybridSearch(ctx, "velocity", []string{CollectionPlaybooks, CollectionMetrics, CollectionEvents}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestHybridSearchNoCollections(t *testing.T) {
	s := newTestStore(t)
	results, err := s.HybridSearch(context.Background(), "anything", nil, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexRecord(ctx, CollectionHistory, "turn-1", "Week one went sideways.", nil))
	n, err := s.DeleteDocument(ctx, "turn-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := s.Search(ctx, CollectionHistory, "sideways", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReindexReplacesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.IndexDocument(ctx, CollectionUserDocs, "doc", strings.Repeat("Old content about waterfall. ", 20), nil)
	require.NoError(t, err)
	_, _, err = s.IndexDocument(ctx, CollectionUserDocs, "doc", strings.Repeat("New content about kanban boards. ", 20), nil)
	require.NoError(t, err)

	results, err := s.Search(ctx, CollectionUserDocs, "waterfall", 10, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Content, "Old content")
	}
}

func TestCollectStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IndexRecord(ctx, CollectionEvents, "e1", "budget freeze", nil))
	require.NoError(t, s.IndexRecord(ctx, CollectionEvents, "e2", "sponsor resigns", nil))
	require.NoError(t, s.IndexRecord(ctx, CollectionProfiles, "p1", "a ceo", nil))

	stats, err := s.CollectStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Collections[CollectionEvents])
	assert.Equal(t, 1, stats.Collections[CollectionProfiles])
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 3, stats.Chunks)
}

func TestGenerateContext(t *testing.T) {
	assert.Empty(t, GenerateContext(nil))

	block := GenerateContext([]SearchResult{
		{Collection: CollectionMetrics, Content: "ROI formula", Distance: 0.1, Metadata: map[string]string{"title": "Finance"}},
	})
	assert.Contains(t, block, "RETRIEVED CONTEXT")
	assert.Contains(t, block, "metrics / Finance")
	assert.Contains(t, block, "ROI formula")
}
