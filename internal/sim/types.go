// Package sim defines the shared data model for the adoption simulation engine:
// query classifications, stakeholder profiles, simulation state and the
// racing/warmup configuration types. Everything here except SimulationState is
// immutable after construction, which is what makes the racing and warmup
// engines safe to run concurrently.
package sim

import "time"

// =============================================================================
// QUERY ROUTING
// =============================================================================

// QueryMode is the closed taxonomy the query router classifies into.
type QueryMode string

const (
	ModePurePersona   QueryMode = "PURE_PERSONA"   // Stakeholder behavior only - skip retrieval
	ModeFinancial     QueryMode = "FINANCIAL"      // Formulas and metrics - metrics collection only
	ModeComparative   QueryMode = "COMPARATIVE"    // Framework/scenario comparison - playbooks+metrics
	ModeEventTrigger  QueryMode = "EVENT_TRIGGER"  // Risk/event questions - events collection only
	ModeHybrid        QueryMode = "HYBRID"         // Multiple sources
)

// KnownModes lists every valid QueryMode value.
var KnownModes = []QueryMode{ModePurePersona, ModeFinancial, ModeComparative, ModeEventTrigger, ModeHybrid}

// Collection names the router can target.
const (
	CollectionProfiles  = "profiles"
	CollectionMetrics   = "metrics"
	CollectionEvents    = "events"
	CollectionPlaybooks = "playbooks"
	CollectionHistory   = "history"
	CollectionUserDocs  = "user_frameworks"
)

// AllCollections is the conservative fan-out used when classification fails.
var AllCollections = []string{CollectionProfiles, CollectionMetrics, CollectionEvents, CollectionPlaybooks}

// QueryClassification is the router's immutable verdict for one query.
type QueryClassification struct {
	Mode         QueryMode `json:"mode"`
	Confidence   float64   `json:"confidence"`
	Collections  []string  `json:"collections"`
	RefinedQuery string    `json:"refined_query"`
}

// =============================================================================
// STAKEHOLDER PROFILES
// =============================================================================

// StakeholderProfile is an immutable description of one simulated person.
// Loaded from a fixture; read-only during a run.
type StakeholderProfile struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"` // "tech" or "non-tech"
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	Department string   `json:"department"`
	Seniority  string   `json:"seniority"`
	Tags       []string `json:"tags,omitempty"`

	Traits  BehavioralTraits `json:"traits"`
	Context ProfileContext   `json:"context"`
	Summary string           `json:"summary,omitempty"`
}

// BehavioralTraits is the fixed set of psychology fields embedded in prompts.
type BehavioralTraits struct {
	CommunicationStyle string `json:"communication_style"`
	WorkApproach       string `json:"work_approach"`
	ConflictHandling   string `json:"conflict_handling"`
	StressHandling     string `json:"stress_handling"`
	ChangeRelationship string `json:"change_relationship"`
	Leadership         string `json:"leadership,omitempty"`
}

// ProfileContext carries the situational fields of a profile.
type ProfileContext struct {
	PreferredFramework string `json:"preferred_framework"`
	FrameworkOpinion   string `json:"framework_opinion"` // e.g. "skeptic", "enthusiast"
	CurrentChallenge   string `json:"current_challenge"`
	Motivation         string `json:"motivation"`
}

// =============================================================================
// SIMULATION CONFIG / FIXTURES
// =============================================================================

// TechDebtLevel grades how much legacy drag the simulated company carries.
type TechDebtLevel string

const (
	TechDebtLow      TechDebtLevel = "low"
	TechDebtMedium   TechDebtLevel = "medium"
	TechDebtHigh     TechDebtLevel = "high"
	TechDebtCritical TechDebtLevel = "critical"
)

// SimulationConfig calibrates one simulation run. Immutable.
type SimulationConfig struct {
	Sector              string        `json:"sector" yaml:"sector"`
	CompanySize         int           `json:"company_size" yaml:"company_size"` // FTEs
	Budget              string        `json:"budget" yaml:"budget"`
	TechDebt            TechDebtLevel `json:"tech_debt" yaml:"tech_debt"`
	OperationalVelocity string        `json:"operational_velocity" yaml:"operational_velocity"`
	PreviousFailures    bool          `json:"previous_failures" yaml:"previous_failures"` // a failed adoption in the past
	Scenario            string        `json:"scenario" yaml:"scenario"`
	DurationMonths      int           `json:"duration_months" yaml:"duration_months"`
	SmallBusiness       bool          `json:"small_business" yaml:"small_business"` // SMB calibration vs enterprise
	Framework           string        `json:"framework" yaml:"framework"`
}

// SimulationEvent is a fixture-defined random event with trigger probability.
type SimulationEvent struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Type        string             `json:"type"`
	BaseChance  float64            `json:"base_chance"`
	Modifiers   []EventModifier    `json:"modifiers,omitempty"`
	Impact      map[string]float64 `json:"impact"`
	Description string             `json:"description"`
}

// EventModifier scales an event's probability when a condition holds.
type EventModifier struct {
	Condition string  `json:"condition"`
	Factor    float64 `json:"factor"`
}

// FrameworkPlaybook describes one corporate framework's rituals and failure modes.
type FrameworkPlaybook struct {
	Name        string           `json:"name"`
	Rituals     []Ritual         `json:"rituals"`
	GoldenRules []string         `json:"golden_rules"`
	CommonFails []FailureTrigger `json:"common_failures"`
}

// Ritual is a recurring ceremony with a time cost.
type Ritual struct {
	Name      string  `json:"name"`
	Duration  string  `json:"duration"`
	Frequency string  `json:"frequency"`
	TimeCost  float64 `json:"time_cost"` // fraction of capacity
}

// FailureTrigger maps a trigger condition to its simulated effect.
type FailureTrigger struct {
	Trigger string `json:"trigger"`
	Effect  string `json:"effect"`
}

// =============================================================================
// SIMULATION STATE
// =============================================================================

// Metric bounds. Velocity has a floor: a team never fully stops.
const (
	MoraleMin     = 0
	MoraleMax     = 100
	VelocityMin   = 20
	VelocityMax   = 150
	ConfidenceMin = 0
	ConfidenceMax = 100
)

// Initial state values.
const (
	InitialMorale     = 70
	InitialVelocity   = 100
	InitialConfidence = 50
)

// SimulationState is the single-owner mutable record driven by the
// Orchestrator. One run owns one state; it is never mutated concurrently.
type SimulationState struct {
	Turn             int          `json:"turn"`
	Morale           float64      `json:"morale"`            // [0,100]
	Velocity         float64      `json:"velocity"`          // [20,150]
	Confidence       float64      `json:"confidence"`        // [0,100]
	Scratchpad       string       `json:"scratchpad"`        // short-term working memory
	TriggeredEvents  []string     `json:"triggered_events"`
	History          []TurnOutput `json:"history"`           // append-only
	DifficultyScalar float64      `json:"difficulty_scalar"`
	Objective        string       `json:"objective"`
}

// NewSimulationState returns a state at its initial values.
func NewSimulationState() SimulationState {
	return SimulationState{
		Morale:           InitialMorale,
		Velocity:         InitialVelocity,
		Confidence:       InitialConfidence,
		DifficultyScalar: 1.0,
		Objective:        "Adopt the proposed framework without losing the team",
	}
}

// Clamp forces all metrics back into their declared bounds.
func (s *SimulationState) Clamp() {
	s.Morale = clamp(s.Morale, MoraleMin, MoraleMax)
	s.Velocity = clamp(s.Velocity, VelocityMin, VelocityMax)
	s.Confidence = clamp(s.Confidence, ConfidenceMin, ConfidenceMax)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MetricsSnapshot is the read-only view of the three bounded metrics.
type MetricsSnapshot struct {
	Morale     float64 `json:"morale"`
	Velocity   float64 `json:"velocity"`
	Confidence float64 `json:"confidence"`
}

// Snapshot captures the current metric values.
func (s *SimulationState) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{Morale: s.Morale, Velocity: s.Velocity, Confidence: s.Confidence}
}

// PersonaResponse is one stakeholder's structured reaction.
type PersonaResponse struct {
	Text            string  `json:"text"`
	Emotion         string  `json:"emotion"`
	MoraleImpact    float64 `json:"morale_impact"` // signed, [-10,+10]
	RetrievalUsed   bool    `json:"retrieval_used"`
	RetrievalSource string  `json:"retrieval_source,omitempty"`
}

// TurnOutput is one stakeholder's reaction in one turn. Appended to history,
// never mutated after creation. Metrics holds the state snapshot taken before
// the turn's consolidation step.
type TurnOutput struct {
	Turn            int             `json:"turn"`
	StakeholderID   string          `json:"stakeholder_id"`
	Stakeholder     string          `json:"stakeholder"`
	Response        PersonaResponse `json:"response"`
	Metrics         MetricsSnapshot `json:"metrics"`
	TriggeredEvents []string        `json:"triggered_events,omitempty"`
	AgenticMetrics  *AgenticMetrics `json:"agentic_metrics,omitempty"`
}

// AgenticMetrics is the per-cycle self-correction cost report (see metrics package).
type AgenticMetrics struct {
	QualityPerCycle float64       `json:"quality_per_cycle"` // 0-100, replan penalty
	TimeToSolve     time.Duration `json:"time_to_solve_ms"`
	TotalTokens     int           `json:"total_tokens"`
	RouterChoice    string        `json:"router_choice"`
}

// GoalEvaluation is the goal evaluator's difficulty verdict.
type GoalEvaluation struct {
	DifficultyScalar float64 `json:"difficulty_scalar"` // 0.8 easier .. 1.2 harder
	Directive        string  `json:"directive,omitempty"`
	CrisisTriggered  bool    `json:"crisis_triggered,omitempty"`
	ReliefTriggered  bool    `json:"relief_triggered,omitempty"`
	Reasoning        string  `json:"reasoning"`
}

// =============================================================================
// WARMUP (SELF-IMPROVEMENT) TYPES
// =============================================================================

// RetrievalMode controls how much retrieval a warmup trial performs.
type RetrievalMode string

const (
	RetrievalFull      RetrievalMode = "full"
	RetrievalSelective RetrievalMode = "selective"
	RetrievalNone      RetrievalMode = "none"
)

// ParameterSpace declares the discrete warmup search space.
type ParameterSpace struct {
	Temperatures   []float64       `json:"temperatures" yaml:"temperatures"`
	TopKValues     []int           `json:"top_k_values" yaml:"top_k_values"`
	RetrievalModes []RetrievalMode `json:"retrieval_modes" yaml:"retrieval_modes"`
}

// DefaultParameterSpace mirrors the calibration ranges used in production runs.
func DefaultParameterSpace() ParameterSpace {
	return ParameterSpace{
		Temperatures:   []float64{0.3, 0.5, 0.7, 0.9},
		TopKValues:     []int{3, 5, 10},
		RetrievalModes: []RetrievalMode{RetrievalFull, RetrievalSelective, RetrievalNone},
	}
}

// OptimizedParameters is one point in the warmup search space.
type OptimizedParameters struct {
	Temperature   float64       `json:"temperature"`
	TopK          int           `json:"top_k"`
	RetrievalMode RetrievalMode `json:"retrieval_mode"`
}

// ConvergencePoint logs one warmup observation, ordered by iteration.
type ConvergencePoint struct {
	Iteration int                 `json:"iteration"`
	Params    OptimizedParameters `json:"params"`
	Score     float64             `json:"score"`
	Timestamp time.Time           `json:"timestamp"`
}

// WarmupConfig bounds the warmup loop.
type WarmupConfig struct {
	MaxIterations      int            `json:"max_iterations" yaml:"max_iterations"`
	TargetPlausibility float64        `json:"target_plausibility" yaml:"target_plausibility"`
	ParameterSpace     ParameterSpace `json:"parameter_space" yaml:"parameter_space"`
}

// WarmupResult is the warmup engine's output: best point plus the full trace.
type WarmupResult struct {
	OptimalParams      OptimizedParameters `json:"optimal_params"`
	IterationsUsed     int                 `json:"iterations_used"`
	FinalScore         float64             `json:"final_score"`
	ConvergenceHistory []ConvergencePoint  `json:"convergence_history"`
}

// =============================================================================
// RACING TYPES
// =============================================================================

// SelectionStrategy decides how the racing engine picks a winner.
type SelectionStrategy string

const (
	SelectBest     SelectionStrategy = "best"
	SelectWeighted SelectionStrategy = "weighted"
	SelectEnsemble SelectionStrategy = "ensemble"
)

// DiversityMode decides which axes vary across racing participants.
type DiversityMode string

const (
	DiversityTemperature DiversityMode = "temperature"
	DiversityPersona     DiversityMode = "persona"
	DiversityModel       DiversityMode = "model"
	DiversityFull        DiversityMode = "full"
)

// RacingConfig bounds one race.
type RacingConfig struct {
	NumAgents         int               `json:"num_agents" yaml:"num_agents"`
	SelectionStrategy SelectionStrategy `json:"selection_strategy" yaml:"selection_strategy"`
	Timeout           time.Duration     `json:"timeout" yaml:"timeout"`
	DiversityMode     DiversityMode     `json:"diversity_mode" yaml:"diversity_mode"`
}

// AgentConfig is one racing participant's configuration.
type AgentConfig struct {
	ID          string  `json:"id"`
	Temperature float64 `json:"temperature"`
	Model       string  `json:"model"`
	Persona     string  `json:"persona"` // analysis stance, e.g. "CFO_conservative"
}

// AgentResult is one participant's outcome.
type AgentResult struct {
	AgentID       string        `json:"agent_id"`
	Config        AgentConfig   `json:"config"`
	Result        any           `json:"result"`
	CritiqueScore float64       `json:"critique_score"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
}

// EnsembleResult is the confidence-weighted blend of numeric outputs.
type EnsembleResult struct {
	WeightedROI        float64  `json:"weighted_roi"`
	WeightedAdoption   float64  `json:"weighted_adoption"`
	Confidence         float64  `json:"confidence"`
	ContributingAgents []string `json:"contributing_agents"`
}

// RacingMetrics summarizes one race.
type RacingMetrics struct {
	TotalDuration   time.Duration `json:"total_duration"`
	AgentsCompleted int           `json:"agents_completed"`
	AgentsFailed    int           `json:"agents_failed"`
	AverageScore    float64       `json:"average_score"`
	ScoreVariance   float64       `json:"score_variance"`
}

// RaceResult aggregates all participants plus the selected winner.
type RaceResult struct {
	Winner     AgentResult     `json:"winner"`
	AllResults []AgentResult   `json:"all_results"`
	Ensemble   *EnsembleResult `json:"ensemble,omitempty"`
	Metrics    RacingMetrics   `json:"metrics"`
}
