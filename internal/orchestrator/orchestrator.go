// Package orchestrator drives the turn-based adoption simulation. Each turn
// routes the situation through retrieval, collects every stakeholder's
// in-character reaction, consolidates the reactions into metric deltas via
// the LLM, lets the critic veto implausible turns, and periodically re-tunes
// difficulty through the goal evaluator. The orchestrator is the single
// owner of the mutable simulation state.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"adoptsim/internal/critic"
	"adoptsim/internal/decode"
	"adoptsim/internal/goal"
	"adoptsim/internal/llm"
	"adoptsim/internal/logging"
	"adoptsim/internal/metrics"
	"adoptsim/internal/persona"
	"adoptsim/internal/roi"
	"adoptsim/internal/router"
	"adoptsim/internal/sim"
	"adoptsim/internal/store"
)

// Tuning constants.
const (
	moraleDamping        = 0.5 // individual reactions are half-weighted
	deltaClamp           = 20  // consolidation deltas are bounded per turn
	punitiveMorale       = 2   // morale penalty when consolidation output is unusable
	goalEvalInterval     = 3   // goal evaluation cadence in turns
	maxReplansPerTurn    = 1   // critic can force at most one regeneration
	defaultRetrievalTopK = 5
)

// Retriever is the slice of the store the orchestrator needs. Nil disables
// retrieval and turn memory.
type Retriever interface {
	HybridSearch(ctx context.Context, query string, collections []string, topK int, filter store.Filter) ([]store.SearchResult, error)
	IndexRecord(ctx context.Context, collection, docID, content string, metadata map[string]string) error
}

// Orchestrator wires the agents around one simulation run.
type Orchestrator struct {
	provider  llm.Provider
	router    *router.Router
	personas  *persona.Agent
	critic    *critic.Critic
	retriever Retriever
	rng       *rand.Rand

	config        sim.SimulationConfig
	stakeholders  []sim.StakeholderProfile
	events        []sim.SimulationEvent
	retrievalTopK int
	retrievalMode sim.RetrievalMode
}

// Options configure construction. Retriever and Events may be nil/empty.
type Options struct {
	Provider     llm.Provider
	Retriever    Retriever
	Config       sim.SimulationConfig
	Stakeholders []sim.StakeholderProfile
	Events       []sim.SimulationEvent
	Temperature  float64
	Seed         int64 // 0 selects a fixed default, keeping runs reproducible

	// RetrievalTopK bounds hits per turn; 0 selects the default.
	RetrievalTopK int
	// RetrievalMode: selective (default) retrieves when the router asks for
	// it, full retrieves every turn, none disables retrieval entirely.
	RetrievalMode sim.RetrievalMode
}

// New builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if len(opts.Stakeholders) == 0 {
		return nil, fmt.Errorf("at least one stakeholder is required")
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 42
	}
	topK := opts.RetrievalTopK
	if topK <= 0 {
		topK = defaultRetrievalTopK
	}
	mode := opts.RetrievalMode
	if mode == "" {
		mode = sim.RetrievalSelective
	}
	return &Orchestrator{
		provider:      opts.Provider,
		router:        router.New(opts.Provider),
		personas:      persona.New(opts.Provider, opts.Temperature),
		critic:        critic.New(opts.Provider),
		retriever:     opts.Retriever,
		rng:           rand.New(rand.NewSource(seed)),
		config:        opts.Config,
		stakeholders:  opts.Stakeholders,
		events:        opts.Events,
		retrievalTopK: topK,
		retrievalMode: mode,
	}, nil
}

// =============================================================================
// TURN LOOP
// =============================================================================

// consolidation is the wire schema of the turn consolidation step.
type consolidation struct {
	MoraleDelta     float64  `json:"morale_delta"`
	VelocityDelta   float64  `json:"velocity_delta"`
	ConfidenceDelta float64  `json:"confidence_delta"`
	TriggeredEvents []string `json:"triggered_events"`
	Scratchpad      string   `json:"scratchpad"`
	Narrative       string   `json:"narrative"`
}

// Validate clamps nothing; bounds are enforced by the caller so punitive
// handling stays in one place. It only rejects structurally empty output.
func (c *consolidation) Validate() error {
	if strings.TrimSpace(c.Narrative) == "" && strings.TrimSpace(c.Scratchpad) == "" {
		return fmt.Errorf("consolidation carries no narrative or scratchpad")
	}
	return nil
}

// RunTurn advances the simulation by one turn around the given situation.
// Returned outputs are also appended to state.History.
func (o *Orchestrator) RunTurn(ctx context.Context, state *sim.SimulationState, situation string) ([]sim.TurnOutput, error) {
	state.Turn++
	collector := metrics.NewCollector()
	logging.Orchestrator("=== turn %d: %s", state.Turn, truncate(situation, 100))

	// 1. Route and retrieve.
	classification := o.router.Classify(ctx, situation)
	collector.RecordRouterChoice(string(classification.Mode))
	retrievedContext, retrievalSource := o.retrieve(ctx, classification, situation)

	// 2. Random events for this turn.
	triggered := o.rollEvents(state)

	// 3. Stakeholder reactions, individually damped.
	outputs := make([]sim.TurnOutput, 0, len(o.stakeholders))
	for _, profile := range o.stakeholders {
		response := o.personas.React(ctx, profile, state.Snapshot(), situation, retrievedContext)
		if response.RetrievalUsed && response.RetrievalSource == "" {
			response.RetrievalSource = retrievalSource
		}
		state.Morale += response.MoraleImpact * moraleDamping
		state.Clamp()

		outputs = append(outputs, sim.TurnOutput{
			Turn:            state.Turn,
			StakeholderID:   profile.ID,
			Stakeholder:     profile.Name,
			Response:        response,
			Metrics:         state.Snapshot(),
			TriggeredEvents: triggered,
		})
	}

	// 4. Consolidation with a single critic-gated retry.
	summary := o.turnSummary(situation, outputs, triggered)
	for attempt := 0; ; attempt++ {
		cons, ok := o.consolidate(ctx, state, summary, collector)
		if !ok {
			// Unusable consolidation output: punitive fallback, no retry.
			state.Morale -= punitiveMorale
			state.Clamp()
			logging.Orchestrator("consolidation unusable, punitive morale -%d applied", punitiveMorale)
			break
		}

		review := o.critic.ReviewTurn(ctx, o.config.Scenario, summary+"\n\nConsolidation: "+cons.Narrative)
		if !review.ReplanRequired() || attempt >= maxReplansPerTurn {
			o.applyConsolidation(state, cons)
			break
		}
		collector.RecordReplan()
		logging.Orchestrator("critic rejected turn (score %.0f), regenerating consolidation", review.PlausibilityScore)
	}

	state.TriggeredEvents = append(state.TriggeredEvents, triggered...)

	// 5. Goal evaluation every Nth turn.
	if state.Turn%goalEvalInterval == 0 {
		eval := goal.Evaluate(state.Snapshot())
		state.DifficultyScalar = eval.DifficultyScalar
		if eval.Directive != "" {
			state.Scratchpad = strings.TrimSpace(state.Scratchpad + "\n" + eval.Directive)
		}
		switch {
		case eval.CrisisTriggered:
			state.Objective = "Hold the adoption together through an induced crisis"
		case eval.ReliefTriggered:
			state.Objective = "Rebuild momentum before the adoption is abandoned"
		}
	}

	// 6. Attach cycle metrics to the turn's final output and persist memory.
	// Every output keeps its pre-consolidation snapshot; the settled state
	// lives on the state itself.
	if len(outputs) > 0 {
		m := collector.Finish()
		outputs[len(outputs)-1].AgenticMetrics = &m
	}
	state.History = append(state.History, outputs...)
	o.persistTurn(ctx, state, summary)

	return outputs, nil
}

// retrieve returns the formatted context block plus the top hit's source
// label for response attribution.
func (o *Orchestrator) retrieve(ctx context.Context, c sim.QueryClassification, situation string) (string, string) {
	if o.retriever == nil || o.retrievalMode == sim.RetrievalNone {
		return "", ""
	}

	collections := c.Collections
	switch o.retrievalMode {
	case sim.RetrievalFull:
		// Full mode retrieves every turn, pure-persona classifications included.
		if len(collections) == 0 {
			collections = sim.AllCollections
		}
	default:
		if !router.ShouldUseRAG(c) {
			return "", ""
		}
	}

	hits, err := o.retriever.HybridSearch(ctx, router.RetrievalQuery(c, situation), collections, o.retrievalTopK, nil)
	if err != nil {
		logging.Orchestrator("retrieval failed, continuing without context: %v", err)
		return "", ""
	}
	if len(hits) == 0 {
		return "", ""
	}
	return store.GenerateContext(hits), sourceLabel(hits[0])
}

func sourceLabel(hit store.SearchResult) string {
	if title := hit.Metadata["title"]; title != "" {
		return hit.Collection + "/" + title
	}
	return hit.Collection + "/" + hit.DocumentID
}

// rollEvents samples fixture events against their resolved probabilities,
// scaled by the current difficulty.
func (o *Orchestrator) rollEvents(state *sim.SimulationState) []string {
	var triggered []string
	for _, ev := range o.events {
		if alreadyTriggered(state, ev.ID) {
			continue
		}
		p := roi.EventProbability(ev, o.config) * state.DifficultyScalar
		if p > 1 {
			p = 1
		}
		if o.rng.Float64() < p {
			triggered = append(triggered, ev.ID)
			for metric, delta := range ev.Impact {
				applyImpact(state, metric, delta)
			}
			state.Clamp()
			logging.Orchestrator("event triggered: %s (%s)", ev.ID, ev.Title)
		}
	}
	return triggered
}

func alreadyTriggered(state *sim.SimulationState, id string) bool {
	for _, t := range state.TriggeredEvents {
		if t == id {
			return true
		}
	}
	return false
}

func applyImpact(state *sim.SimulationState, metric string, delta float64) {
	switch strings.ToLower(metric) {
	case "morale":
		state.Morale += delta
	case "velocity":
		state.Velocity += delta
	case "confidence":
		state.Confidence += delta
	}
}

func (o *Orchestrator) consolidate(ctx context.Context, state *sim.SimulationState, summary string, collector *metrics.Collector) (consolidation, bool) {
	prompt := o.consolidationPrompt(state, summary)
	resp, err := o.provider.Generate(ctx, llm.Request{
		System:      "You consolidate a corporate simulation turn into metric movements. Output JSON only.",
		Prompt:      prompt,
		Temperature: 0.4,
	})
	if err != nil {
		logging.Orchestrator("consolidation call failed: %v", err)
		return consolidation{}, false
	}
	collector.RecordTokens(resp.TotalTokens())

	result := decode.DecodeLenient[consolidation](resp.Text)
	if !result.OK {
		logging.Orchestrator("consolidation parse failed: %v", result.Err)
		return consolidation{}, false
	}
	return result.Value, true
}

// applyConsolidation clamps deltas, applies them under the difficulty scalar
// and rewrites the scratchpad.
func (o *Orchestrator) applyConsolidation(state *sim.SimulationState, c consolidation) {
	scalar := state.DifficultyScalar
	state.Morale += clampDelta(c.MoraleDelta) * scalar
	state.Velocity += clampDelta(c.VelocityDelta) * scalar
	state.Confidence += clampDelta(c.ConfidenceDelta) * scalar
	state.Clamp()

	if strings.TrimSpace(c.Scratchpad) != "" {
		state.Scratchpad = c.Scratchpad
	}
	state.TriggeredEvents = append(state.TriggeredEvents, c.TriggeredEvents...)
}

func clampDelta(d float64) float64 {
	if d > deltaClamp {
		return deltaClamp
	}
	if d < -deltaClamp {
		return -deltaClamp
	}
	return d
}

func (o *Orchestrator) consolidationPrompt(state *sim.SimulationState, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scenario: %s (framework: %s, sector: %s)\n", o.config.Scenario, o.config.Framework, o.config.Sector)
	fmt.Fprintf(&sb, "Objective: %s\n", state.Objective)
	fmt.Fprintf(&sb, "Current metrics: morale %.0f, velocity %.0f, confidence %.0f. Difficulty scalar %.1f.\n",
		state.Morale, state.Velocity, state.Confidence, state.DifficultyScalar)
	if state.Scratchpad != "" {
		fmt.Fprintf(&sb, "Working notes from previous turns:\n%s\n", state.Scratchpad)
	}
	fmt.Fprintf(&sb, "\n%s\n\n", summary)
	sb.WriteString(`Consolidate this turn. Respond with JSON only:
{"morale_delta": number, "velocity_delta": number, "confidence_delta": number, "triggered_events": [], "scratchpad": "rewritten working notes for next turn", "narrative": "one paragraph of what happened"}`)
	return sb.String()
}

func (o *Orchestrator) turnSummary(situation string, outputs []sim.TurnOutput, triggered []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Situation: %s\n", situation)
	if len(triggered) > 0 {
		fmt.Fprintf(&sb, "Events this turn: %s\n", strings.Join(triggered, ", "))
	}
	sb.WriteString("Reactions:\n")
	for _, out := range outputs {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", out.Stakeholder, out.Response.Emotion, out.Response.Text)
	}
	return sb.String()
}

// persistTurn writes the turn summary into the history collection so later
// turns can retrieve their own past.
func (o *Orchestrator) persistTurn(ctx context.Context, state *sim.SimulationState, summary string) {
	if o.retriever == nil {
		return
	}
	docID := fmt.Sprintf("turn-%d", state.Turn)
	meta := map[string]string{
		"turn":     fmt.Sprintf("%d", state.Turn),
		"scenario": o.config.Scenario,
	}
	if err := o.retriever.IndexRecord(ctx, store.CollectionHistory, docID, summary, meta); err != nil {
		logging.Orchestrator("turn memory write failed: %v", err)
	}
}

// =============================================================================
// FULL RUNS
// =============================================================================

// RunResult is the outcome of a multi-turn run.
type RunResult struct {
	State      sim.SimulationState `json:"state"`
	Projection roi.Projection      `json:"projection"`
}

// RunSimulation runs the situation for the configured number of turns and
// closes with the deterministic financial projection.
func (o *Orchestrator) RunSimulation(ctx context.Context, situation string, turns int) (*RunResult, error) {
	if turns <= 0 {
		turns = 6
	}
	state := sim.NewSimulationState()

	for t := 0; t < turns; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation aborted at turn %d: %w", state.Turn, err)
		}
		if _, err := o.RunTurn(ctx, &state, situation); err != nil {
			return nil, fmt.Errorf("turn %d: %w", state.Turn, err)
		}
	}

	return &RunResult{
		State:      state,
		Projection: roi.Project(o.config),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
