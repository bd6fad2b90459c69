package persona

import (
	"context"
	"fmt"
	"strings"

	"adoptsim/internal/decode"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// MoraleImpactLimit bounds the signed per-reaction morale impact before the
// orchestrator applies its damping.
const MoraleImpactLimit = 10

// Agent turns a stakeholder profile plus a situation into a structured
// in-character reaction.
type Agent struct {
	provider    llm.Provider
	temperature float64
}

// New creates a persona agent. temperature <= 0 selects the default 0.7.
func New(provider llm.Provider, temperature float64) *Agent {
	if temperature <= 0 {
		temperature = 0.7
	}
	return &Agent{provider: provider, temperature: temperature}
}

// reaction is the wire schema the model must produce.
type reaction struct {
	Text         string  `json:"text"`
	Emotion      string  `json:"emotion"`
	MoraleImpact float64 `json:"morale_impact"`
}

// Validate bounds the morale impact and requires non-empty text.
func (r *reaction) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("empty reaction text")
	}
	if r.MoraleImpact < -MoraleImpactLimit || r.MoraleImpact > MoraleImpactLimit {
		return fmt.Errorf("morale impact %.1f out of [-%d,%d]", r.MoraleImpact, MoraleImpactLimit, MoraleImpactLimit)
	}
	return nil
}

// React produces one stakeholder's reaction to the situation. retrievedContext
// may be empty (pure persona mode). Never returns an error: failures degrade
// to a neutral, zero-impact reaction so the turn loop keeps moving.
func (a *Agent) React(ctx context.Context, profile sim.StakeholderProfile, state sim.MetricsSnapshot, situation, retrievedContext string) sim.PersonaResponse {
	arch := MatchArchetype(profile.Role, profile.Context.FrameworkOpinion)

	prompt := buildPrompt(profile, arch, state, situation, retrievedContext)
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      "You roleplay exactly one corporate stakeholder. Stay in character. Output JSON only.",
		Prompt:      prompt,
		Temperature: a.temperature,
	})
	if err != nil {
		logging.Persona("%s reaction call failed, using neutral fallback: %v", profile.Name, err)
		return neutralResponse(profile)
	}

	result := decode.Decode[reaction](resp.Text)
	if !result.OK {
		logging.Persona("%s reaction parse failed, using neutral fallback: %v", profile.Name, result.Err)
		return neutralResponse(profile)
	}

	r := result.Value
	logging.Persona("%s (%s) reacted: emotion=%s impact=%.1f", profile.Name, arch.Key, r.Emotion, r.MoraleImpact)
	return sim.PersonaResponse{
		Text:          r.Text,
		Emotion:       r.Emotion,
		MoraleImpact:  r.MoraleImpact,
		RetrievalUsed: retrievedContext != "",
	}
}

func neutralResponse(profile sim.StakeholderProfile) sim.PersonaResponse {
	return sim.PersonaResponse{
		Text:    fmt.Sprintf("%s observes the discussion without committing to a position.", profile.Name),
		Emotion: "neutral",
	}
}

func buildPrompt(profile sim.StakeholderProfile, arch Archetype, state sim.MetricsSnapshot, situation, retrievedContext string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, %s in the %s department (%s).\n", profile.Name, profile.Role, profile.Department, profile.Seniority)
	fmt.Fprintf(&sb, "Disposition: %s\n\n", arch.Disposition)

	sb.WriteString("Your behavioral traits:\n")
	fmt.Fprintf(&sb, "- Communication: %s\n", profile.Traits.CommunicationStyle)
	fmt.Fprintf(&sb, "- Work approach: %s\n", profile.Traits.WorkApproach)
	fmt.Fprintf(&sb, "- Under conflict: %s\n", profile.Traits.ConflictHandling)
	fmt.Fprintf(&sb, "- Under stress: %s\n", profile.Traits.StressHandling)
	fmt.Fprintf(&sb, "- Toward change: %s\n", profile.Traits.ChangeRelationship)
	fmt.Fprintf(&sb, "\nYour current challenge: %s\nYour motivation: %s\nYour opinion on %s: %s\n",
		profile.Context.CurrentChallenge, profile.Context.Motivation,
		profile.Context.PreferredFramework, profile.Context.FrameworkOpinion)

	if len(arch.FewShots) > 0 {
		sb.WriteString("\nExamples of how you react:\n")
		for _, fs := range arch.FewShots {
			fmt.Fprintf(&sb, "Situation: %s\nYou: %s (%s)\n", fs.Situation, fs.Reaction, fs.Emotion)
		}
	}

	fmt.Fprintf(&sb, "\nTeam climate right now: morale %.0f/100, velocity %.0f, confidence in the adoption %.0f/100.\n",
		state.Morale, state.Velocity, state.Confidence)

	if retrievedContext != "" {
		fmt.Fprintf(&sb, "\n%s\n", retrievedContext)
	}

	fmt.Fprintf(&sb, "\nSituation this week:\n%s\n\n", situation)
	sb.WriteString(`React in character. Respond with JSON only:
{"text": "what you say or do", "emotion": "one word", "morale_impact": -10 to 10 (effect of your reaction on team morale)}`)

	return sb.String()
}
