// Package metrics tracks the cost of self-correction per simulation cycle.
// Each replan burns a fixed slice of cycle quality; the collector aggregates
// tokens, latency and routing decisions into the per-turn report attached to
// turn outputs.
package metrics

import (
	"time"

	"adoptsim/internal/logging"
	"adoptsim/internal/sim"
)

// ReplanPenalty is the quality cost of one replan within a cycle.
const ReplanPenalty = 15

// QualityPerCycle computes cycle quality from the replan count:
// 100 minus the penalty per replan, floored at 0.
func QualityPerCycle(replans int) float64 {
	q := 100 - float64(replans)*ReplanPenalty
	if q < 0 {
		return 0
	}
	return q
}

// Collector accumulates one cycle's cost figures. Not safe for concurrent
// use; each cycle owns its collector.
type Collector struct {
	start        time.Time
	replans      int
	totalTokens  int
	routerChoice string
}

// NewCollector starts a cycle measurement.
func NewCollector() *Collector {
	return &Collector{start: time.Now()}
}

// RecordReplan counts one critic-forced regeneration.
func (c *Collector) RecordReplan() {
	c.replans++
}

// RecordTokens adds a provider call's token usage.
func (c *Collector) RecordTokens(n int) {
	c.totalTokens += n
}

// RecordRouterChoice remembers the last routing decision of the cycle.
func (c *Collector) RecordRouterChoice(choice string) {
	c.routerChoice = choice
}

// Replans returns the replan count so far.
func (c *Collector) Replans() int {
	return c.replans
}

// Finish closes the cycle and produces its report.
func (c *Collector) Finish() sim.AgenticMetrics {
	m := sim.AgenticMetrics{
		QualityPerCycle: QualityPerCycle(c.replans),
		TimeToSolve:     time.Since(c.start),
		TotalTokens:     c.totalTokens,
		RouterChoice:    c.routerChoice,
	}
	logging.Metrics("cycle: quality=%.0f replans=%d tokens=%d elapsed=%v",
		m.QualityPerCycle, c.replans, m.TotalTokens, m.TimeToSolve)
	return m
}
