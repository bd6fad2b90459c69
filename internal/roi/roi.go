// Package roi projects the financial trajectory of a framework adoption.
// Fully deterministic: same configuration, same projection. The model is a
// J-curve over monthly value creation with tech-debt drag compounding against
// it, calibrated separately for small businesses and enterprises.
package roi

import (
	"fmt"
	"strings"

	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// jCurveFactors scale monthly value creation: early months destroy value
// while the organization absorbs the new process, later months compound the
// gains. Months beyond the table reuse the final factor.
var jCurveFactors = []float64{0.6, 0.6, 0.9, 0.9, 1.2, 1.2, 1.3, 1.3, 1.4, 1.4, 1.5, 1.5}

// Traumatic-history ramp: organizations with a failed adoption behind them
// move slower for the first months.
const (
	traumaFactor = 0.8
	traumaMonths = 3
)

// baseVariables hold the per-month calibration before modifiers.
type baseVariables struct {
	monthlyValue float64 // value created at factor 1.0
	monthlyCost  float64 // adoption running cost
}

// Calibration split: small businesses run cheaper and gain less in absolute
// terms, enterprises carry heavier coordination overhead.
func baseFor(cfg sim.SimulationConfig) baseVariables {
	if cfg.SmallBusiness {
		return baseVariables{monthlyValue: 18000, monthlyCost: 12000}
	}
	return baseVariables{monthlyValue: 95000, monthlyCost: 60000}
}

// debtProfile maps the tech-debt grade to its cost multiplier and the
// monthly compounding interest of unaddressed debt.
type debtProfile struct {
	costMultiplier float64
	interest       float64
}

var debtProfiles = map[sim.TechDebtLevel]debtProfile{
	sim.TechDebtLow:      {costMultiplier: 1.0, interest: 0.00},
	sim.TechDebtMedium:   {costMultiplier: 1.15, interest: 0.01},
	sim.TechDebtHigh:     {costMultiplier: 1.35, interest: 0.025},
	sim.TechDebtCritical: {costMultiplier: 1.6, interest: 0.05},
}

// MonthProjection is one month of the projection.
type MonthProjection struct {
	Month      int     `json:"month"` // 1-based
	Value      float64 `json:"value"`
	Cost       float64 `json:"cost"`
	Net        float64 `json:"net"`
	Cumulative float64 `json:"cumulative"`
}

// Projection is the full deterministic financial outlook.
type Projection struct {
	Months         []MonthProjection `json:"months"`
	BreakEvenMonth int               `json:"break_even_month"` // 0 when never reached
	TotalValue     float64           `json:"total_value"`
	TotalCost      float64           `json:"total_cost"`
	ROIPercent     float64           `json:"roi_percent"`
	Confidence     string            `json:"confidence"` // high / medium / low
}

// Project computes the monthly projection for the configured horizon.
func Project(cfg sim.SimulationConfig) Projection {
	months := cfg.DurationMonths
	if months <= 0 {
		months = 12
	}

	base := baseFor(cfg)
	debt, ok := debtProfiles[cfg.TechDebt]
	if !ok {
		debt = debtProfiles[sim.TechDebtMedium]
	}

	p := Projection{Months: make([]MonthProjection, 0, months)}
	cumulative := 0.0
	debtDrag := 1.0

	for m := 1; m <= months; m++ {
		factor := jCurveFactors[len(jCurveFactors)-1]
		if m-1 < len(jCurveFactors) {
			factor = jCurveFactors[m-1]
		}

		value := base.monthlyValue * factor
		if cfg.PreviousFailures && m <= traumaMonths {
			value *= traumaFactor
		}

		// Debt drag compounds monthly against the running cost.
		debtDrag *= 1 + debt.interest
		cost := base.monthlyCost * debt.costMultiplier * debtDrag

		net := value - cost
		cumulative += net

		p.Months = append(p.Months, MonthProjection{
			Month:      m,
			Value:      value,
			Cost:       cost,
			Net:        net,
			Cumulative: cumulative,
		})
		p.TotalValue += value
		p.TotalCost += cost

		if p.BreakEvenMonth == 0 && cumulative >= 0 && net > 0 {
			p.BreakEvenMonth = m
		}
	}

	if p.TotalCost > 0 {
		p.ROIPercent = (p.TotalValue - p.TotalCost) / p.TotalCost * 100
	}
	p.Confidence = confidenceGrade(cfg)

	logging.Metrics("ROI projection: %d months, break-even month %d, ROI %.1f%% (%s confidence)",
		months, p.BreakEvenMonth, p.ROIPercent, p.Confidence)
	return p
}

func confidenceGrade(cfg sim.SimulationConfig) string {
	score := 0
	switch cfg.TechDebt {
	case sim.TechDebtLow:
		score += 2
	case sim.TechDebtMedium:
		score++
	case sim.TechDebtCritical:
		score -= 2
	case sim.TechDebtHigh:
		score--
	}
	if cfg.PreviousFailures {
		score--
	}
	if cfg.SmallBusiness {
		score++ // smaller blast radius, faster feedback
	}

	switch {
	case score >= 2:
		return "high"
	case score >= 0:
		return "medium"
	default:
		return "low"
	}
}

// =============================================================================
// EVENT PROBABILITY
// =============================================================================

// EventProbability resolves an event's trigger chance under the current
// configuration: base chance scaled by every modifier whose condition holds,
// clamped to [0,1].
func EventProbability(event sim.SimulationEvent, cfg sim.SimulationConfig) float64 {
	chance := event.BaseChance
	for _, mod := range event.Modifiers {
		if conditionHolds(mod.Condition, cfg) {
			chance *= mod.Factor
		}
	}
	if chance < 0 {
		return 0
	}
	if chance > 1 {
		return 1
	}
	return chance
}

// conditionHolds evaluates the small condition language used by event
// fixtures: "key=value" pairs over the simulation config, plus bare flags.
func conditionHolds(condition string, cfg sim.SimulationConfig) bool {
	condition = strings.TrimSpace(strings.ToLower(condition))
	switch condition {
	case "previous_failures":
		return cfg.PreviousFailures
	case "small_business":
		return cfg.SmallBusiness
	case "enterprise":
		return !cfg.SmallBusiness
	}

	if key, value, found := strings.Cut(condition, "="); found {
		switch strings.TrimSpace(key) {
		case "tech_debt":
			return string(cfg.TechDebt) == strings.TrimSpace(value)
		case "sector":
			return strings.EqualFold(cfg.Sector, strings.TrimSpace(value))
		case "velocity":
			return strings.EqualFold(cfg.OperationalVelocity, strings.TrimSpace(value))
		case "framework":
			return strings.EqualFold(cfg.Framework, strings.TrimSpace(value))
		}
	}

	logging.Metrics("unknown event condition %q, treated as false", condition)
	return false
}

// Summary renders the projection as the short block injected into prompts
// and final reports.
func Summary(p Projection) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ROI projection (%d months, %s confidence):\n", len(p.Months), p.Confidence)
	fmt.Fprintf(&sb, "- Total value: %.0f, total cost: %.0f, ROI: %.1f%%\n", p.TotalValue, p.TotalCost, p.ROIPercent)
	if p.BreakEvenMonth > 0 {
		fmt.Fprintf(&sb, "- Break-even in month %d\n", p.BreakEvenMonth)
	} else {
		sb.WriteString("- Break-even not reached within the horizon\n")
	}
	return sb.String()
}
