// Package critic scores simulation turns for plausibility. A score below the
// replan threshold marks the turn for regeneration. The critic fails open: if
// scoring itself breaks, the turn passes with a perfect score rather than
// stalling the simulation.
package critic

import (
	"context"
	"fmt"

	"adoptsim/internal/decode"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
)

// ReplanThreshold is the score below which a turn must be regenerated.
const ReplanThreshold = 70

// Review is the critic's verdict on one turn.
type Review struct {
	PlausibilityScore float64  `json:"plausibility_score"`
	Issues            []string `json:"issues"`
	Reasoning         string   `json:"reasoning"`
}

// ReplanRequired derives the replan decision from the score. Derived, never
// stored, so the two can not disagree.
func (r Review) ReplanRequired() bool {
	return r.PlausibilityScore < ReplanThreshold
}

// Validate bounds the score.
func (r *Review) Validate() error {
	if r.PlausibilityScore < 0 || r.PlausibilityScore > 100 {
		return fmt.Errorf("plausibility score %.1f out of [0,100]", r.PlausibilityScore)
	}
	return nil
}

// PassReview is the fail-open verdict: full score, no issues.
func PassReview(reason string) Review {
	return Review{PlausibilityScore: 100, Reasoning: reason}
}

// Critic reviews turn outputs.
type Critic struct {
	provider llm.Provider
}

// New creates a critic.
func New(provider llm.Provider) *Critic {
	return &Critic{provider: provider}
}

const reviewPrompt = `You review a corporate simulation turn for internal consistency.

Scenario context:
%s

Turn under review:
%s

Judge whether the stakeholder reactions and metric movements are plausible
given the scenario. Contradictions, impossible metric jumps or out-of-character
reactions lower the score.

Respond with JSON only:
{"plausibility_score": 0-100, "issues": ["..."], "reasoning": "..."}`

// Review scores a summary and reports failures to the caller. Callers that
// want the fail-open behavior use ReviewTurn instead.
func (c *Critic) Review(ctx context.Context, scenario, summary string) (Review, error) {
	resp, err := c.provider.Generate(ctx, llm.Request{
		System:      "You are a strict simulation reviewer. Output JSON only.",
		Prompt:      fmt.Sprintf(reviewPrompt, scenario, summary),
		Temperature: 0.2,
	})
	if err != nil {
		return Review{}, fmt.Errorf("review call: %w", err)
	}

	result := decode.Decode[Review](resp.Text)
	if !result.OK {
		return Review{}, fmt.Errorf("review parse: %w", result.Err)
	}

	review := result.Value
	logging.Critic("scored %.0f (replan=%v, %d issues)",
		review.PlausibilityScore, review.ReplanRequired(), len(review.Issues))
	return review, nil
}

// ReviewTurn scores one turn. Never returns an error: provider or parse
// failures fail open to a passing review.
func (c *Critic) ReviewTurn(ctx context.Context, scenario, turnSummary string) Review {
	review, err := c.Review(ctx, scenario, turnSummary)
	if err != nil {
		logging.Critic("review failed, passing turn: %v", err)
		return PassReview("critic unavailable")
	}
	return review
}
