package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityPerCycle(t *testing.T) {
	assert.Equal(t, 100.0, QualityPerCycle(0))
	assert.Equal(t, 85.0, QualityPerCycle(1))
	assert.Equal(t, 70.0, QualityPerCycle(2))
	assert.Equal(t, 10.0, QualityPerCycle(6))
	assert.Equal(t, 0.0, QualityPerCycle(7))
	assert.Equal(t, 0.0, QualityPerCycle(100))
}

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector()
	c.RecordReplan()
	c.RecordReplan()
	c.RecordTokens(120)
	c.RecordTokens(80)
	c.RecordRouterChoice("FINANCIAL")

	assert.Equal(t, 2, c.Replans())

	m := c.Finish()
	assert.Equal(t, 70.0, m.QualityPerCycle)
	assert.Equal(t, 200, m.TotalTokens)
	assert.Equal(t, "FINANCIAL", m.RouterChoice)
	assert.GreaterOrEqual(t, m.TimeToSolve.Nanoseconds(), int64(0))
}

func TestCleanCycleIsPerfect(t *testing.T) {
	m := NewCollector().Finish()
	assert.Equal(t, 100.0, m.QualityPerCycle)
}
