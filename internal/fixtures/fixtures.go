// Package fixtures loads the simulation's knowledge base from disk:
// stakeholder profiles, random events and framework playbooks as JSON, and
// metrics reference documents as Markdown. It also formats every record into
// the compact text indexed into the retrieval store, and hydrates stakeholder
// ids arriving at the HTTP boundary into full profiles.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
	"adoptsim/internal/store"
)

// Expected layout under the fixtures directory.
const (
	profilesFile  = "profiles.json"
	eventsFile    = "events.json"
	playbooksFile = "playbooks.json"
	metricsDir    = "metrics"
)

// Set is a loaded fixture bundle.
type Set struct {
	Profiles  []sim.StakeholderProfile
	Events    []sim.SimulationEvent
	Playbooks []sim.FrameworkPlaybook
	// MetricsDocs maps filename to Markdown content.
	MetricsDocs map[string]string
}

// Load reads the fixture bundle from dir. Missing files are tolerated with a
// warning; a completely empty directory yields an empty set, and the caller
// falls back to built-in profiles.
func Load(dir string) (*Set, error) {
	set := &Set{MetricsDocs: make(map[string]string)}

	if err := loadJSON(filepath.Join(dir, profilesFile), &set.Profiles); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, eventsFile), &set.Events); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, playbooksFile), &set.Playbooks); err != nil {
		return nil, err
	}

	mdDir := filepath.Join(dir, metricsDir)
	entries, err := os.ReadDir(mdDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read metrics dir: %w", err)
		}
		logging.Fixtures("no metrics directory at %s", mdDir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(mdDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		set.MetricsDocs[entry.Name()] = string(data)
	}

	logging.Fixtures("loaded %d profiles, %d events, %d playbooks, %d metrics docs from %s",
		len(set.Profiles), len(set.Events), len(set.Playbooks), len(set.MetricsDocs), dir)
	return set, nil
}

// loadJSON reads a JSON array file into out. A missing file is not an error.
func loadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Fixtures("fixture file missing: %s", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// INDEXING
// =============================================================================

// IndexAll writes the full fixture bundle into the retrieval store: profiles,
// events and playbooks as single records, metrics documents chunked.
func IndexAll(ctx context.Context, s *store.Store, set *Set) error {
	for _, p := range set.Profiles {
		meta := map[string]string{"kind": p.Kind, "role": p.Role, "department": p.Department}
		if err := s.IndexRecord(ctx, store.CollectionProfiles, "profile-"+p.ID, FormatProfile(p), meta); err != nil {
			return fmt.Errorf("index profile %s: %w", p.ID, err)
		}
	}
	for _, e := range set.Events {
		meta := map[string]string{"type": e.Type}
		if err := s.IndexRecord(ctx, store.CollectionEvents, "event-"+e.ID, FormatEvent(e), meta); err != nil {
			return fmt.Errorf("index event %s: %w", e.ID, err)
		}
	}
	for _, pb := range set.Playbooks {
		meta := map[string]string{"framework": pb.Name}
		if err := s.IndexRecord(ctx, store.CollectionPlaybooks, "playbook-"+slug(pb.Name), FormatPlaybook(pb), meta); err != nil {
			return fmt.Errorf("index playbook %s: %w", pb.Name, err)
		}
	}
	for name, content := range set.MetricsDocs {
		docID := "metrics-" + slug(strings.TrimSuffix(name, ".md"))
		if _, _, err := s.IndexDocument(ctx, store.CollectionMetrics, docID, content, map[string]string{"source": name}); err != nil {
			return fmt.Errorf("index metrics doc %s: %w", name, err)
		}
	}
	logging.Fixtures("fixture bundle indexed")
	return nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}

// =============================================================================
// COMPACT FORMATS
// =============================================================================

// FormatProfile renders a profile as the compact block indexed for retrieval.
func FormatProfile(p sim.StakeholderProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "STAKEHOLDER %s | %s, %s, %s\n", p.Name, p.Role, p.Department, p.Seniority)
	fmt.Fprintf(&sb, "Communication: %s. Work: %s. Conflict: %s. Stress: %s. Change: %s.\n",
		p.Traits.CommunicationStyle, p.Traits.WorkApproach, p.Traits.ConflictHandling,
		p.Traits.StressHandling, p.Traits.ChangeRelationship)
	fmt.Fprintf(&sb, "Framework stance: %s on %s. Challenge: %s. Motivation: %s.",
		p.Context.FrameworkOpinion, p.Context.PreferredFramework,
		p.Context.CurrentChallenge, p.Context.Motivation)
	if p.Summary != "" {
		fmt.Fprintf(&sb, "\n%s", p.Summary)
	}
	return sb.String()
}

// FormatEvent renders an event fixture for retrieval.
func FormatEvent(e sim.SimulationEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "EVENT %s (%s) | base chance %.0f%%\n%s", e.Title, e.Type, e.BaseChance*100, e.Description)
	if len(e.Impact) > 0 {
		sb.WriteString("\nImpact:")
		for metric, delta := range e.Impact {
			fmt.Fprintf(&sb, " %s %+.0f", metric, delta)
		}
	}
	return sb.String()
}

// FormatPlaybook renders a framework playbook for retrieval.
func FormatPlaybook(pb sim.FrameworkPlaybook) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FRAMEWORK %s\nRituals:\n", pb.Name)
	for _, r := range pb.Rituals {
		fmt.Fprintf(&sb, "- %s: %s %s (%.0f%% capacity)\n", r.Name, r.Duration, r.Frequency, r.TimeCost*100)
	}
	if len(pb.GoldenRules) > 0 {
		sb.WriteString("Golden rules:\n")
		for _, rule := range pb.GoldenRules {
			fmt.Fprintf(&sb, "- %s\n", rule)
		}
	}
	if len(pb.CommonFails) > 0 {
		sb.WriteString("Common failures:\n")
		for _, f := range pb.CommonFails {
			fmt.Fprintf(&sb, "- %s -> %s\n", f.Trigger, f.Effect)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// HYDRATION
// =============================================================================

// Hydrate resolves stakeholder references (ids or names) arriving at the
// HTTP boundary into full profiles. Unknown references resolve against the
// built-in defaults; references matching nothing are dropped with a warning.
func Hydrate(refs []string, set *Set) []sim.StakeholderProfile {
	pool := BuiltinProfiles()
	if set != nil && len(set.Profiles) > 0 {
		pool = append(append([]sim.StakeholderProfile(nil), set.Profiles...), pool...)
	}

	var out []sim.StakeholderProfile
	for _, ref := range refs {
		found := false
		for _, p := range pool {
			if strings.EqualFold(p.ID, ref) || strings.EqualFold(p.Name, ref) {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			logging.Fixtures("unknown stakeholder reference %q dropped", ref)
		}
	}
	return out
}

// BuiltinProfiles returns the default cast used when no fixtures are loaded.
func BuiltinProfiles() []sim.StakeholderProfile {
	return []sim.StakeholderProfile{
		{
			ID: "ceo-skeptic", Kind: "non-tech", Name: "Ricardo Mendes", Role: "CEO",
			Department: "Executive", Seniority: "C-level",
			Traits: sim.BehavioralTraits{
				CommunicationStyle: "direct, numbers first",
				WorkApproach:       "delegates execution, owns direction",
				ConflictHandling:   "confronts immediately",
				StressHandling:     "doubles down on control",
				ChangeRelationship: "resists until proven",
			},
			Context: sim.ProfileContext{
				PreferredFramework: "none",
				FrameworkOpinion:   "skeptic",
				CurrentChallenge:   "margin pressure from competitors",
				Motivation:         "protect the company he built",
			},
		},
		{
			ID: "cfo-pragmatic", Kind: "non-tech", Name: "Helena Duarte", Role: "CFO",
			Department: "Finance", Seniority: "C-level",
			Traits: sim.BehavioralTraits{
				CommunicationStyle: "precise, written",
				WorkApproach:       "models everything before deciding",
				ConflictHandling:   "defuses with data",
				StressHandling:     "tightens reporting cadence",
				ChangeRelationship: "accepts funded, measured change",
			},
			Context: sim.ProfileContext{
				PreferredFramework: "OKR",
				FrameworkOpinion:   "pragmatic",
				CurrentChallenge:   "justifying transformation spend",
				Motivation:         "predictable cash flow",
			},
		},
		{
			ID: "cto-enthusiast", Kind: "tech", Name: "Andre Sato", Role: "CTO",
			Department: "Engineering", Seniority: "C-level",
			Traits: sim.BehavioralTraits{
				CommunicationStyle: "evangelizing, visual",
				WorkApproach:       "prototypes before committing",
				ConflictHandling:   "seeks technical common ground",
				StressHandling:     "retreats into architecture work",
				ChangeRelationship: "early adopter",
			},
			Context: sim.ProfileContext{
				PreferredFramework: "Scrum",
				FrameworkOpinion:   "enthusiast",
				CurrentChallenge:   "legacy platform slowing delivery",
				Motivation:         "modernize before the market forces it",
			},
		},
		{
			ID: "techlead-skeptic", Kind: "tech", Name: "Paula Freitas", Role: "Tech Lead",
			Department: "Engineering", Seniority: "senior",
			Traits: sim.BehavioralTraits{
				CommunicationStyle: "blunt in private, quiet in meetings",
				WorkApproach:       "shields the team from churn",
				ConflictHandling:   "passive resistance",
				StressHandling:     "absorbs pressure silently",
				ChangeRelationship: "burned twice, complies minimally",
			},
			Context: sim.ProfileContext{
				PreferredFramework: "Kanban",
				FrameworkOpinion:   "skeptic",
				CurrentChallenge:   "two failed transformations behind her",
				Motivation:         "keep the team shipping",
			},
		},
		{
			ID: "dev-autonomous", Kind: "tech", Name: "Marcos Lima", Role: "Senior Developer",
			Department: "Engineering", Seniority: "senior",
			Traits: sim.BehavioralTraits{
				CommunicationStyle: "async, terse",
				WorkApproach:       "deep focus blocks",
				ConflictHandling:   "disengages",
				StressHandling:     "works longer, talks less",
				ChangeRelationship: "judges by meeting load",
			},
			Context: sim.ProfileContext{
				PreferredFramework: "none",
				FrameworkOpinion:   "indifferent",
				CurrentChallenge:   "interrupt-driven weeks",
				Motivation:         "uninterrupted building",
			},
		},
	}
}
