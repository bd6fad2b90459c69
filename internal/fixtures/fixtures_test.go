package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adoptsim/internal/embedding"
	"adoptsim/internal/sim"
	"adoptsim/internal/store"
)

func writeFixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	profiles := `[{"id": "pm-1", "kind": "non-tech", "name": "Clara Nunes", "role": "Product Manager",
		"department": "Product", "seniority": "senior"}]`
	events := `[{"id": "budget-cut", "title": "Budget cut", "type": "financial", "base_chance": 0.1,
		"impact": {"morale": -5}, "description": "Finance trims the transformation budget."}]`
	playbooks := `[{"name": "Scrum", "rituals": [{"name": "Daily", "duration": "15m", "frequency": "daily", "time_cost": 0.03}],
		"golden_rules": ["Protect the sprint"], "common_failures": [{"trigger": "skipping retros", "effect": "repeat mistakes"}]}]`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.json"), []byte(profiles), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte(events), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "playbooks.json"), []byte(playbooks), 0o644))

	mdDir := filepath.Join(dir, "metrics")
	require.NoError(t, os.Mkdir(mdDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mdDir, "roi.md"), []byte("# ROI\n\nValue minus cost over cost."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(mdDir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestLoadFullBundle(t *testing.T) {
	set, err := Load(writeFixtureDir(t))
	require.NoError(t, err)

	require.Len(t, set.Profiles, 1)
	assert.Equal(t, "Clara Nunes", set.Profiles[0].Name)
	require.Len(t, set.Events, 1)
	assert.Equal(t, 0.1, set.Events[0].BaseChance)
	require.Len(t, set.Playbooks, 1)
	assert.Equal(t, "Scrum", set.Playbooks[0].Name)

	// Only .md files under metrics/ count.
	require.Len(t, set.MetricsDocs, 1)
	assert.Contains(t, set.MetricsDocs["roi.md"], "# ROI")
}

func TestLoadToleratesEmptyDirectory(t *testing.T) {
	set, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, set.Profiles)
	assert.Empty(t, set.Events)
	assert.Empty(t, set.MetricsDocs)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte("{not json"), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestIndexAll(t *testing.T) {
	set, err := Load(writeFixtureDir(t))
	require.NoError(t, err)

	s := store.New(filepath.Join(t.TempDir(), "fx.db"), embedding.NewHashEngine(64))
	defer s.Close()

	require.NoError(t, IndexAll(context.Background(), s, set))

	stats, err := s.CollectStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Collections[store.CollectionProfiles])
	assert.Equal(t, 1, stats.Collections[store.CollectionEvents])
	assert.Equal(t, 1, stats.Collections[store.CollectionPlaybooks])
	assert.Positive(t, stats.Collections[store.CollectionMetrics])
}

func TestFormatProfile(t *testing.T) {
	out := FormatProfile(BuiltinProfiles()[0])
	assert.Contains(t, out, "STAKEHOLDER Ricardo Mendes")
	assert.Contains(t, out, "CEO")
	assert.Contains(t, out, "skeptic")
}

func TestFormatEvent(t *testing.T) {
	out := FormatEvent(sim.SimulationEvent{
		ID: "e", Title: "Key resignation", Type: "people", BaseChance: 0.25,
		Impact:      map[string]float64{"morale": -10},
		Description: "A senior engineer quits.",
	})
	assert.Contains(t, out, "EVENT Key resignation (people)")
	assert.Contains(t, out, "25%")
	assert.Contains(t, out, "morale -10")
}

func TestFormatPlaybook(t *testing.T) {
	out := FormatPlaybook(sim.FrameworkPlaybook{
		Name:        "Kanban",
		Rituals:     []sim.Ritual{{Name: "Replenishment", Duration: "30m", Frequency: "weekly", TimeCost: 0.02}},
		GoldenRules: []string{"Limit work in progress"},
		CommonFails: []sim.FailureTrigger{{Trigger: "no WIP limits", Effect: "hidden queues"}},
	})
	assert.Contains(t, out, "FRAMEWORK Kanban")
	assert.Contains(t, out, "Replenishment")
	assert.Contains(t, out, "Limit work in progress")
	assert.Contains(t, out, "no WIP limits -> hidden queues")
}

func TestHydrateResolvesByIDAndName(t *testing.T) {
	set := &Set{Profiles: []sim.StakeholderProfile{{ID: "pm-1", Name: "Clara Nunes", Role: "PM"}}}

	got := Hydrate([]string{"pm-1", "ricardo mendes", "nobody"}, set)
	require.Len(t, got, 2)
	assert.Equal(t, "pm-1", got[0].ID)
	assert.Equal(t, "Ricardo Mendes", got[1].Name)
}

func TestHydrateFixtureProfilesShadowBuiltins(t *testing.T) {
	set := &Set{Profiles: []sim.StakeholderProfile{{ID: "ceo-skeptic", Name: "Override CEO", Role: "CEO"}}}

	got := Hydrate([]string{"ceo-skeptic"}, set)
	require.Len(t, got, 1)
	assert.Equal(t, "Override CEO", got[0].Name)
}

func TestBuiltinProfilesCoverBothKinds(t *testing.T) {
	profiles := BuiltinProfiles()
	require.Len(t, profiles, 5)

	kinds := map[string]int{}
	for _, p := range profiles {
		kinds[p.Kind]++
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Role)
	}
	assert.Positive(t, kinds["tech"])
	assert.Positive(t, kinds["non-tech"])
}
