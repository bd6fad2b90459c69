package persona

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adoptsim/internal/llm"
	"adoptsim/internal/sim"
)

type scriptedProvider struct {
	text string
	err  error
	last llm.Request
}

func (p *scriptedProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func testProfile() sim.StakeholderProfile {
	return sim.StakeholderProfile{
		ID: "ceo-1", Name: "Ricardo", Role: "CEO", Department: "Executive", Seniority: "C-level",
		Traits: sim.BehavioralTraits{
			CommunicationStyle: "direct",
			WorkApproach:       "top-down",
			ConflictHandling:   "confrontational",
			StressHandling:     "controlling",
			ChangeRelationship: "resistant",
		},
		Context: sim.ProfileContext{
			PreferredFramework: "none",
			FrameworkOpinion:   "skeptic",
			CurrentChallenge:   "margin pressure",
			Motivation:         "stability",
		},
	}
}

func TestMatchArchetype(t *testing.T) {
	assert.Equal(t, "ceo_skeptic", MatchArchetype("CEO", "skeptic").Key)
	assert.Equal(t, "cfo_pragmatic", MatchArchetype("CFO", "whatever").Key)
	assert.Equal(t, "cto_enthusiast", MatchArchetype("CTO", "enthusiast").Key)
	assert.Equal(t, "techlead_skeptic", MatchArchetype("Tech Lead", "resistant").Key)
	assert.Equal(t, "dev_autonomous", MatchArchetype("Senior Developer", "indifferent").Key)
}

func TestMatchArchetypeFallsBackToNeutral(t *testing.T) {
	assert.Equal(t, "neutral", MatchArchetype("Head of Legal", "curious").Key)
	assert.Equal(t, "neutral", MatchArchetype("", "").Key)
	// A CTO who is not an enthusiast does not get the enthusiast bank.
	assert.Equal(t, "neutral", MatchArchetype("CTO", "skeptic").Key)
}

func TestReactParsesStructuredResponse(t *testing.T) {
	p := &scriptedProvider{text: `{"text": "Show me the numbers first.", "emotion": "skeptical", "morale_impact": -3}`}
	agent := New(p, 0)

	resp := agent.React(context.Background(), testProfile(), sim.MetricsSnapshot{Morale: 70, Velocity: 100, Confidence: 50}, "Scrum rollout announced", "")
	assert.Equal(t, "Show me the numbers first.", resp.Text)
	assert.Equal(t, -3.0, resp.MoraleImpact)
	assert.False(t, resp.RetrievalUsed)
}

func TestReactMarksRetrievalUsage(t *testing.T) {
	p := &scriptedProvider{text: `{"text": "Fine.", "emotion": "neutral", "morale_impact": 0}`}
	agent := New(p, 0)

	resp := agent.React(context.Background(), testProfile(), sim.MetricsSnapshot{}, "situation", "=== RETRIEVED CONTEXT ===\nsome doc")
	assert.True(t, resp.RetrievalUsed)
	assert.Contains(t, p.last.Prompt, "RETRIEVED CONTEXT")
}

func TestReactFallsBackOnProviderError(t *testing.T) {
	agent := New(&scriptedProvider{err: errors.New("down")}, 0)

	resp := agent.React(context.Background(), testProfile(), sim.MetricsSnapshot{}, "situation", "")
	assert.Zero(t, resp.MoraleImpact)
	assert.Equal(t, "neutral", resp.Emotion)
	assert.NotEmpty(t, resp.Text)
}

func TestReactRejectsOutOfRangeImpact(t *testing.T) {
	agent := New(&scriptedProvider{text: `{"text": "I quit!", "emotion": "furious", "morale_impact": -40}`}, 0)

	resp := agent.React(context.Background(), testProfile(), sim.MetricsSnapshot{}, "situation", "")
	// Out-of-range impact falls back to neutral rather than being clamped.
	assert.Zero(t, resp.MoraleImpact)
}

func TestPromptCarriesProfileAndClimate(t *testing.T) {
	p := &scriptedProvider{text: `{"text": "ok", "emotion": "neutral", "morale_impact": 0}`}
	agent := New(p, 0)

	agent.React(context.Background(), testProfile(), sim.MetricsSnapshot{Morale: 42, Velocity: 77, Confidence: 9}, "the big announcement", "")
	require.NotEmpty(t, p.last.Prompt)
	assert.Contains(t, p.last.Prompt, "Ricardo")
	assert.Contains(t, p.last.Prompt, "morale 42")
	assert.Contains(t, p.last.Prompt, "the big announcement")
	assert.Contains(t, p.last.Prompt, "margin pressure")
}
