package racing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"adoptsim/internal/sim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixedScorer scores results by their numeric payload.
func fixedScorer(_ context.Context, result any) float64 {
	if v, ok := result.(float64); ok {
		return v
	}
	return 0
}

func TestBuildAgentConfigsDiversity(t *testing.T) {
	temps := BuildAgentConfigs(sim.RacingConfig{NumAgents: 5, DiversityMode: sim.DiversityTemperature})
	require.Len(t, temps, 5)
	seen := map[float64]bool{}
	for _, a := range temps {
		seen[a.Temperature] = true
	}
	assert.Len(t, seen, 5)

	personas := BuildAgentConfigs(sim.RacingConfig{NumAgents: 3, DiversityMode: sim.DiversityPersona})
	assert.NotEqual(t, personas[0].Persona, personas[1].Persona)

	models := BuildAgentConfigs(sim.RacingConfig{NumAgents: 4, DiversityMode: sim.DiversityModel})
	assert.Equal(t, models[0].Model, models[2].Model)
	assert.NotEqual(t, models[0].Model, models[1].Model)
}

func TestRaceBestSelectsMaximalScore(t *testing.T) {
	e := New(fixedScorer, nil, 1)

	// Score by temperature so the ordering is known.
	task := func(_ context.Context, cfg sim.AgentConfig) (any, error) {
		return cfg.Temperature * 100, nil
	}

	result, err := e.Race(context.Background(), sim.RacingConfig{
		NumAgents:         5,
		DiversityMode:     sim.DiversityTemperature,
		SelectionStrategy: sim.SelectBest,
		Timeout:           time.Second,
	}, task)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Metrics.AgentsCompleted)
	assert.Zero(t, result.Metrics.AgentsFailed)
	for _, r := range result.AllResults {
		assert.LessOrEqual(t, r.CritiqueScore, result.Winner.CritiqueScore)
	}
	assert.Equal(t, 100.0, result.Winner.CritiqueScore)
}

func TestRaceAllFailed(t *testing.T) {
	e := New(fixedScorer, nil, 1)
	task := func(context.Context, sim.AgentConfig) (any, error) {
		return nil, errors.New("backend refused")
	}

	_, err := e.Race(context.Background(), sim.RacingConfig{NumAgents: 3, Timeout: time.Second}, task)
	assert.ErrorIs(t, err, ErrNoSuccessfulResults)
}

func TestRaceOneTimeout(t *testing.T) {
	e := New(fixedScorer, nil, 1)

	// agent-2 blocks until its deadline; the others return instantly.
	task := func(ctx context.Context, cfg sim.AgentConfig) (any, error) {
		if cfg.ID == "agent-2" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return 50.0, nil
	}

	result, err := e.Race(context.Background(), sim.RacingConfig{
		NumAgents:         3,
		DiversityMode:     sim.DiversityTemperature,
		SelectionStrategy: sim.SelectBest,
		Timeout:           50 * time.Millisecond,
	}, task)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metrics.AgentsFailed)
	assert.Equal(t, 2, result.Metrics.AgentsCompleted)
	assert.NotEqual(t, "agent-2", result.Winner.AgentID)
}

func TestRaceEnsembleBlendsNumbers(t *testing.T) {
	extractor := func(result any) (float64, float64, bool) {
		v, ok := result.(float64)
		if !ok {
			return 0, 0, false
		}
		return v, v / 2, true
	}
	// Equal scores make the blend a plain average.
	scorer := func(context.Context, any) float64 { return 80 }
	e := New(scorer, extractor, 1)

	task := func(_ context.Context, cfg sim.AgentConfig) (any, error) {
		return cfg.Temperature * 100, nil
	}

	result, err := e.Race(context.Background(), sim.RacingConfig{
		NumAgents:         5,
		DiversityMode:     sim.DiversityTemperature,
		SelectionStrategy: sim.SelectEnsemble,
		Timeout:           time.Second,
	}, task)
	require.NoError(t, err)
	require.NotNil(t, result.Ensemble)

	// Pool temperatures: 0.3 0.5 0.7 0.9 1.0 -> mean 68.
	assert.InDelta(t, 68.0, result.Ensemble.WeightedROI, 1e-9)
	assert.InDelta(t, 34.0, result.Ensemble.WeightedAdoption, 1e-9)
	assert.Len(t, result.Ensemble.ContributingAgents, 5)
	assert.InDelta(t, 0.8, result.Ensemble.Confidence, 1e-9)
}

func TestRaceWeightedPicksSuccessfulAgent(t *testing.T) {
	e := New(fixedScorer, nil, 7)
	task := func(_ context.Context, cfg sim.AgentConfig) (any, error) {
		if cfg.ID == "agent-1" {
			return nil, errors.New("boom")
		}
		return 10.0, nil
	}

	result, err := e.Race(context.Background(), sim.RacingConfig{
		NumAgents:         3,
		SelectionStrategy: sim.SelectWeighted,
		Timeout:           time.Second,
	}, task)
	require.NoError(t, err)
	assert.True(t, result.Winner.Success)
	assert.NotEqual(t, "agent-1", result.Winner.AgentID)
}

func TestRaceMetricsVariance(t *testing.T) {
	e := New(fixedScorer, nil, 1)
	task := func(_ context.Context, cfg sim.AgentConfig) (any, error) {
		return cfg.Temperature * 100, nil
	}

	result, err := e.Race(context.Background(), sim.RacingConfig{
		NumAgents:     2,
		DiversityMode: sim.DiversityTemperature,
		Timeout:       time.Second,
	}, task)
	require.NoError(t, err)

	// Scores 30 and 50: mean 40, variance 100.
	assert.InDelta(t, 40.0, result.Metrics.AverageScore, 1e-9)
	assert.InDelta(t, 100.0, result.Metrics.ScoreVariance, 1e-9)
}
