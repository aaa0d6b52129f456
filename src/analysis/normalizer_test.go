package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// Timestamp coercion
// -----------------------------------------------------------------------------

func TestCoerceTimestampMillis_Scales(t *testing.T) {
	// Second-scale epochs get promoted to millis.
	sec := CoerceTimestampMillis(int64(1700000000))
	require.NotNil(t, sec)
	assert.Equal(t, int64(1700000000000), *sec)

	// Millisecond-scale epochs pass through.
	ms := CoerceTimestampMillis(int64(1700000000000))
	require.NotNil(t, ms)
	assert.Equal(t, int64(1700000000000), *ms)

	// Numeric strings follow the same rule.
	fromStr := CoerceTimestampMillis("1700000000")
	require.NotNil(t, fromStr)
	assert.Equal(t, int64(1700000000000), *fromStr)
}

func TestCoerceTimestampMillis_Rejects(t *testing.T) {
	assert.Nil(t, CoerceTimestampMillis(nil))
	assert.Nil(t, CoerceTimestampMillis("not a time"))
	assert.Nil(t, CoerceTimestampMillis(""))
	assert.Nil(t, CoerceTimestampMillis(int64(0)))
	assert.Nil(t, CoerceTimestampMillis(int64(-5)))
	assert.Nil(t, CoerceTimestampMillis(math.NaN()))
	assert.Nil(t, CoerceTimestampMillis(math.Inf(1)))
	assert.Nil(t, CoerceTimestampMillis(struct{}{}))
}

func TestCoerceTimestampMillis_Formats(t *testing.T) {
	ref := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fromTime := CoerceTimestampMillis(ref)
	require.NotNil(t, fromTime)
	assert.Equal(t, ref.UnixMilli(), *fromTime)

	fromISO := CoerceTimestampMillis("2025-06-01T12:00:00Z")
	require.NotNil(t, fromISO)
	assert.Equal(t, ref.UnixMilli(), *fromISO)
}

// -----------------------------------------------------------------------------
// Normalizer
// -----------------------------------------------------------------------------

func TestNormalizer_MapsRangeToUnitInterval(t *testing.T) {
	series := []models.MSample{
		{Timestamp: int64(1700000000000), Value: 1},
		{Timestamp: int64(1700000100000), Value: 2},
		{Timestamp: int64(1700000200000), Value: 3},
	}
	n := NewNormalizer(series)

	first := n.Normalize(int64(1700000000000))
	mid := n.Normalize(int64(1700000100000))
	last := n.Normalize(int64(1700000200000))
	require.NotNil(t, first)
	require.NotNil(t, mid)
	require.NotNil(t, last)

	assert.Equal(t, 0.0, *first)
	assert.InDelta(t, 0.5, *mid, 1e-9)
	assert.Equal(t, 1.0, *last)
}

func TestNormalizer_MixedScalesShareOneAxis(t *testing.T) {
	// One series in seconds, one in millis, same real-world instants.
	seconds := []models.MSample{
		{Timestamp: int64(1700000000), Value: 1},
		{Timestamp: int64(1700000200), Value: 2},
	}
	millis := []models.MSample{
		{Timestamp: int64(1700000100000), Value: 3},
	}
	n := NewNormalizer(seconds, millis)

	lo, hi := n.TimeRange()
	assert.Equal(t, int64(1700000000000), lo)
	assert.Equal(t, int64(1700000200000), hi)

	mid := n.Normalize(int64(1700000100))
	require.NotNil(t, mid)
	assert.InDelta(t, 0.5, *mid, 1e-9)
}

func TestNormalizer_Degenerate(t *testing.T) {
	empty := NewNormalizer()
	v := empty.Normalize(int64(1700000000000))
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)

	single := NewNormalizer([]models.MSample{{Timestamp: int64(1700000000000), Value: 1}})
	v = single.Normalize(int64(1700000000000))
	require.NotNil(t, v)
	assert.Equal(t, 0.0, *v)
}

func TestNormalizeSeries_DropsBadSamples(t *testing.T) {
	n := NewNormalizer([]models.MSample{
		{Timestamp: int64(1700000000000), Value: 1},
		{Timestamp: int64(1700000200000), Value: 2},
	})

	in := []models.MSample{
		{Timestamp: int64(1700000000000), Value: 1},
		{Timestamp: "garbage", Value: 2},
		{Timestamp: int64(1700000100000), Value: math.NaN()},
		{Timestamp: int64(1700000200000), Value: 3},
	}
	out := n.NormalizeSeries(in)

	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Value)
	assert.Equal(t, 3.0, out[1].Value)
	// Input untouched.
	assert.Len(t, in, 4)
}

func TestSortPointsByTime(t *testing.T) {
	points := []models.MChartPoint{
		{Time: 0.9, Value: 3},
		{Time: 0.1, Value: 1},
		{Time: 0.5, Value: 2},
	}
	SortPointsByTime(points)

	assert.Equal(t, 1.0, points[0].Value)
	assert.Equal(t, 2.0, points[1].Value)
	assert.Equal(t, 3.0, points[2].Value)
}
