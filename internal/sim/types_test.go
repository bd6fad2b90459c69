package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSimulationStateDefaults(t *testing.T) {
	s := NewSimulationState()
	assert.Equal(t, float64(InitialMorale), s.Morale)
	assert.Equal(t, float64(InitialVelocity), s.Velocity)
	assert.Equal(t, float64(InitialConfidence), s.Confidence)
	assert.Equal(t, 1.0, s.DifficultyScalar)
	assert.Zero(t, s.Turn)
}

func TestClampEnforcesBounds(t *testing.T) {
	s := NewSimulationState()
	s.Morale = 250
	s.Velocity = -40
	s.Confidence = -3
	s.Clamp()

	assert.Equal(t, float64(MoraleMax), s.Morale)
	assert.Equal(t, float64(VelocityMin), s.Velocity)
	assert.Equal(t, float64(ConfidenceMin), s.Confidence)

	s.Velocity = 999
	s.Clamp()
	assert.Equal(t, float64(VelocityMax), s.Velocity)
}

func TestClampLeavesInBoundsValues(t *testing.T) {
	s := NewSimulationState()
	s.Morale, s.Velocity, s.Confidence = 55, 88, 12
	s.Clamp()
	assert.Equal(t, 55.0, s.Morale)
	assert.Equal(t, 88.0, s.Velocity)
	assert.Equal(t, 12.0, s.Confidence)
}

func TestSnapshotReflectsState(t *testing.T) {
	s := NewSimulationState()
	s.Morale = 33
	snap := s.Snapshot()
	assert.Equal(t, 33.0, snap.Morale)
	assert.Equal(t, s.Velocity, snap.Velocity)
}
