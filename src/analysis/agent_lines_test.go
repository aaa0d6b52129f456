package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------

func TestBuildAgentLines_PercentChange(t *testing.T) {
	agents := []models.MAgent{
		{ID: "a1", Name: "alpha", InitialCapital: 1000},
	}
	snapshots := map[string][]models.MSample{
		"a1": {
			{Timestamp: int64(1700000000000), Value: 1000},
			{Timestamp: int64(1700000100000), Value: 1100},
			{Timestamp: int64(1700000200000), Value: 900},
		},
	}

	lines := BuildAgentLines(agents, snapshots)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Points, 3)

	assert.Equal(t, "a1", lines[0].AgentID)
	assert.InDelta(t, 0.0, lines[0].Points[0].Value, 1e-9)
	assert.InDelta(t, 10.0, lines[0].Points[1].Value, 1e-9)
	assert.InDelta(t, -10.0, lines[0].Points[2].Value, 1e-9)
}

func TestBuildAgentLines_ExcludesUnusableInitialCapital(t *testing.T) {
	agents := []models.MAgent{
		{ID: "zero", Name: "zero", InitialCapital: 0},
		{ID: "nan", Name: "nan", InitialCapital: math.NaN()},
		{ID: "ok", Name: "ok", InitialCapital: 500},
	}
	snapshots := map[string][]models.MSample{
		"zero": {{Timestamp: int64(1700000000000), Value: 100}},
		"nan":  {{Timestamp: int64(1700000000000), Value: 100}},
		"ok":   {{Timestamp: int64(1700000000000), Value: 550}},
	}

	lines := BuildAgentLines(agents, snapshots)
	require.Len(t, lines, 1)
	assert.Equal(t, "ok", lines[0].AgentID)
	require.Len(t, lines[0].Points, 1)
	assert.InDelta(t, 10.0, lines[0].Points[0].Value, 1e-9)
}

func TestBuildAgentLines_ExtraSeriesWidenAxis(t *testing.T) {
	agents := []models.MAgent{
		{ID: "a1", Name: "alpha", InitialCapital: 100},
	}
	snapshots := map[string][]models.MSample{
		"a1": {
			{Timestamp: int64(1700000100000), Value: 110},
		},
	}
	// Extra series spans a wider range than the agent's snapshots.
	extra := []models.MSample{
		{Timestamp: int64(1700000000000), Value: 0},
		{Timestamp: int64(1700000200000), Value: 0},
	}

	lines := BuildAgentLines(agents, snapshots, extra)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Points, 1)

	// The agent's single point sits at the middle of the widened axis.
	assert.InDelta(t, 0.5, lines[0].Points[0].Time, 1e-9)
}

func TestBuildAgentLines_PointsSorted(t *testing.T) {
	agents := []models.MAgent{
		{ID: "a1", Name: "alpha", InitialCapital: 100},
	}
	snapshots := map[string][]models.MSample{
		"a1": {
			{Timestamp: int64(1700000200000), Value: 120},
			{Timestamp: int64(1700000000000), Value: 100},
			{Timestamp: int64(1700000100000), Value: 110},
		},
	}

	lines := BuildAgentLines(agents, snapshots)
	require.Len(t, lines, 1)
	points := lines[0].Points
	require.Len(t, points, 3)
	assert.True(t, points[0].Time <= points[1].Time)
	assert.True(t, points[1].Time <= points[2].Time)
}
