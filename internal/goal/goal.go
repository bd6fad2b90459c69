// Package goal adjusts simulation difficulty to keep runs informative. The
// evaluator is a pure function of the current metrics: a cruising team gets a
// crisis, a collapsing team gets relief, everyone else stays at baseline.
package goal

import (
	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// Thresholds on the morale/velocity average.
const (
	CrisisThreshold   = 90 // above this the run is too easy
	RecoveryThreshold = 30 // below this the run is spiraling
)

// Difficulty scalars.
const (
	ScalarCrisis   = 1.2
	ScalarRecovery = 0.8
	ScalarBaseline = 1.0
)

// Directives injected into the orchestrator's scratchpad when a threshold
// trips.
const (
	crisisDirective   = "DIRECTIVE: the adoption is going suspiciously well. Introduce a credible setback: a key resignation, a budget freeze or an integration failure."
	recoveryDirective = "DIRECTIVE: the team is near collapse. Surface a realistic source of hope: a small win, an executive intervention or external validation."
)

// Evaluate is pure: same state, same verdict. The average of morale and
// velocity drives the decision; confidence is informative only.
func Evaluate(state sim.MetricsSnapshot) sim.GoalEvaluation {
	avg := (state.Morale + state.Velocity) / 2

	switch {
	case avg > CrisisThreshold:
		logging.Goal("avg %.1f > %d: raising difficulty to %.1f", avg, CrisisThreshold, ScalarCrisis)
		return sim.GoalEvaluation{
			DifficultyScalar: ScalarCrisis,
			Directive:        crisisDirective,
			CrisisTriggered:  true,
			Reasoning:        "metrics too healthy, run is no longer stressing the adoption",
		}
	case avg < RecoveryThreshold:
		logging.Goal("avg %.1f < %d: easing difficulty to %.1f", avg, RecoveryThreshold, ScalarRecovery)
		return sim.GoalEvaluation{
			DifficultyScalar: ScalarRecovery,
			Directive:        recoveryDirective,
			ReliefTriggered:  true,
			Reasoning:        "metrics collapsing, run would end in a trivial failure spiral",
		}
	default:
		return sim.GoalEvaluation{
			DifficultyScalar: ScalarBaseline,
			Reasoning:        "metrics within the informative band",
		}
	}
}
