// Package racing runs the same analysis task through multiple diversified
// agents in parallel and selects a winner. Diversity comes from temperature,
// analysis persona or model pools; selection is best-score, score-weighted
// random, or a numeric ensemble blend. A race fails only when every single
// agent fails.
package racing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// ErrNoSuccessfulResults is returned when every racing agent failed.
var ErrNoSuccessfulResults = errors.New("racing: no agent produced a successful result")

// Diversity pools. Racing cycles through them per agent index.
var (
	temperaturePool = []float64{0.3, 0.5, 0.7, 0.9, 1.0}
	personaPool     = []string{"CFO_conservative", "CTO_optimist", "COO_pragmatic", "CEO_visionary", "HR_cautious"}
	modelPool       = []string{"gemini-2.0-flash", "gemini-2.5-pro"}
)

// Task runs one agent's analysis under its configuration.
type Task func(ctx context.Context, cfg sim.AgentConfig) (any, error)

// Scorer assigns a critique score in [0,100] to a successful result.
type Scorer func(ctx context.Context, result any) float64

// Extractor pulls the numeric figures the ensemble strategy averages.
// ok=false excludes the result from the blend.
type Extractor func(result any) (roiPct, adoptionPct float64, ok bool)

// Engine races agents. Safe for concurrent use; each race is independent.
type Engine struct {
	scorer    Scorer
	extractor Extractor
	rng       *rand.Rand
	rngMu     sync.Mutex
}

// New creates a racing engine. scorer must not be nil; extractor may be nil
// unless the ensemble strategy is used, in which case a nil extractor makes
// every ensemble empty.
func New(scorer Scorer, extractor Extractor, seed int64) *Engine {
	if seed == 0 {
		seed = 42
	}
	return &Engine{
		scorer:    scorer,
		extractor: extractor,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// BuildAgentConfigs expands a racing config into per-agent configurations
// according to the diversity mode.
func BuildAgentConfigs(cfg sim.RacingConfig) []sim.AgentConfig {
	n := cfg.NumAgents
	if n <= 0 {
		n = 3
	}

	configs := make([]sim.AgentConfig, n)
	for i := 0; i < n; i++ {
		agent := sim.AgentConfig{
			ID:          fmt.Sprintf("agent-%d", i+1),
			Temperature: 0.7,
			Persona:     personaPool[0],
			Model:       "",
		}
		switch cfg.DiversityMode {
		case sim.DiversityTemperature:
			agent.Temperature = temperaturePool[i%len(temperaturePool)]
		case sim.DiversityPersona:
			agent.Persona = personaPool[i%len(personaPool)]
		case sim.DiversityModel:
			agent.Model = modelPool[i%len(modelPool)]
		case sim.DiversityFull:
			agent.Temperature = temperaturePool[i%len(temperaturePool)]
			agent.Persona = personaPool[i%len(personaPool)]
			agent.Model = modelPool[i%len(modelPool)]
		default:
			agent.Temperature = temperaturePool[i%len(temperaturePool)]
		}
		configs[i] = agent
	}
	return configs
}

// Race runs the task once per agent configuration, in parallel, and selects
// a winner with the configured strategy.
func (e *Engine) Race(ctx context.Context, cfg sim.RacingConfig, task Task) (*sim.RaceResult, error) {
	agents := BuildAgentConfigs(cfg)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	logging.Racing("race started: %d agents, diversity=%s, strategy=%s, timeout=%v",
		len(agents), cfg.DiversityMode, cfg.SelectionStrategy, timeout)

	raceStart := time.Now()
	results := make([]sim.AgentResult, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range agents {
		g.Go(func() error {
			results[i] = e.runAgent(gctx, agent, timeout, task)
			return nil
		})
	}
	// Worker errors are captured inside results; the group only propagates
	// panics-by-contract, so Wait's error is always nil here.
	_ = g.Wait()

	raceMetrics := summarize(results, time.Since(raceStart))
	successes := successful(results)
	if len(successes) == 0 {
		logging.Racing("race failed: all %d agents errored", len(agents))
		return nil, ErrNoSuccessfulResults
	}

	result := &sim.RaceResult{AllResults: results, Metrics: raceMetrics}
	switch cfg.SelectionStrategy {
	case sim.SelectWeighted:
		result.Winner = e.selectWeighted(successes)
	case sim.SelectEnsemble:
		result.Winner = selectBest(successes)
		ensemble := e.blend(successes)
		result.Ensemble = &ensemble
	default:
		result.Winner = selectBest(successes)
	}

	logging.Racing("race finished: winner=%s score=%.1f (%d/%d succeeded in %v)",
		result.Winner.AgentID, result.Winner.CritiqueScore,
		raceMetrics.AgentsCompleted, len(agents), raceMetrics.TotalDuration)
	return result, nil
}

// runAgent executes one participant under its own timeout. Failures are
// recorded, never propagated; one slow or broken agent must not sink a race.
func (e *Engine) runAgent(ctx context.Context, agent sim.AgentConfig, timeout time.Duration, task Task) sim.AgentResult {
	agentCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out := sim.AgentResult{AgentID: agent.ID, Config: agent}

	value, err := task(agentCtx, agent)
	out.Duration = time.Since(start)

	if err == nil && agentCtx.Err() != nil {
		err = agentCtx.Err()
	}
	if err != nil {
		out.Error = err.Error()
		logging.Racing("agent %s failed after %v: %v", agent.ID, out.Duration, err)
		return out
	}

	out.Result = value
	out.Success = true
	out.CritiqueScore = e.scorer(ctx, value)
	return out
}

func successful(results []sim.AgentResult) []sim.AgentResult {
	var out []sim.AgentResult
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

// selectBest returns the highest-scoring success; earlier agents win ties.
func selectBest(successes []sim.AgentResult) sim.AgentResult {
	best := successes[0]
	for _, r := range successes[1:] {
		if r.CritiqueScore > best.CritiqueScore {
			best = r
		}
	}
	return best
}

// selectWeighted samples a winner with probability proportional to score.
// All-zero scores degrade to uniform.
func (e *Engine) selectWeighted(successes []sim.AgentResult) sim.AgentResult {
	total := 0.0
	for _, r := range successes {
		total += r.CritiqueScore
	}

	e.rngMu.Lock()
	roll := e.rng.Float64()
	e.rngMu.Unlock()

	if total <= 0 {
		return successes[int(roll*float64(len(successes)))%len(successes)]
	}

	target := roll * total
	acc := 0.0
	for _, r := range successes {
		acc += r.CritiqueScore
		if target <= acc {
			return r
		}
	}
	return successes[len(successes)-1]
}

// blend computes the score-weighted numeric ensemble over extractable results.
func (e *Engine) blend(successes []sim.AgentResult) sim.EnsembleResult {
	if e.extractor == nil {
		return sim.EnsembleResult{}
	}

	var roiSum, adoptionSum, weightSum, scoreSum float64
	var contributors []string
	for _, r := range successes {
		roiPct, adoption, ok := e.extractor(r.Result)
		if !ok {
			continue
		}
		weight := r.CritiqueScore
		if weight <= 0 {
			weight = 1
		}
		roiSum += roiPct * weight
		adoptionSum += adoption * weight
		weightSum += weight
		scoreSum += r.CritiqueScore
		contributors = append(contributors, r.AgentID)
	}
	if weightSum == 0 {
		return sim.EnsembleResult{}
	}

	return sim.EnsembleResult{
		WeightedROI:        roiSum / weightSum,
		WeightedAdoption:   adoptionSum / weightSum,
		Confidence:         scoreSum / float64(len(contributors)) / 100,
		ContributingAgents: contributors,
	}
}

func summarize(results []sim.AgentResult, total time.Duration) sim.RacingMetrics {
	m := sim.RacingMetrics{TotalDuration: total}
	var scores []float64
	for _, r := range results {
		if r.Success {
			m.AgentsCompleted++
			scores = append(scores, r.CritiqueScore)
		} else {
			m.AgentsFailed++
		}
	}
	if len(scores) == 0 {
		return m
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	m.AverageScore = sum / float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		variance += (s - m.AverageScore) * (s - m.AverageScore)
	}
	m.ScoreVariance = variance / float64(len(scores))
	if math.IsNaN(m.ScoreVariance) {
		m.ScoreVariance = 0
	}
	return m
}
