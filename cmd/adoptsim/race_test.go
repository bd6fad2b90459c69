package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"adoptsim/internal/critic"
	"adoptsim/internal/llm"
	"adoptsim/internal/orchestrator"
	"adoptsim/internal/sim"
)

type reviewProvider struct {
	text string
	err  error
}

func (p *reviewProvider) Generate(context.Context, llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Text: p.text}, nil
}

func (p *reviewProvider) Name() string { return "scripted" }

func sampleRun() *orchestrator.RunResult {
	return &orchestrator.RunResult{State: sim.SimulationState{
		Turn: 2, Morale: 60, Velocity: 90, Confidence: 40,
	}}
}

func TestRunScorerUsesCriticVerdict(t *testing.T) {
	judge := critic.New(&reviewProvider{text: `{"plausibility_score": 72, "issues": [], "reasoning": "ok"}`})
	scorer := newRunScorer(judge, "scenario")

	assert.Equal(t, 72.0, scorer(context.Background(), sampleRun()))
}

func TestRunScorerFallsBackToHeuristicOnError(t *testing.T) {
	judge := critic.New(&reviewProvider{err: errors.New("backend down")})
	scorer := newRunScorer(judge, "scenario")

	// Heuristic: team health (60+40)/2 with no cycle samples.
	assert.Equal(t, 50.0, scorer(context.Background(), sampleRun()))
}

func TestRunScorerRejectsForeignResults(t *testing.T) {
	judge := critic.New(&reviewProvider{text: "{}"})
	scorer := newRunScorer(judge, "scenario")

	assert.Zero(t, scorer(context.Background(), "not a run"))
}
