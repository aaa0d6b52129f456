package analysis

import (
	"math"
	"sort"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// Normalizer maps absolute timestamps into the [0, 1] interval spanned by all
// series handed to it, so heterogeneous series can share one chart axis.
// -----------------------------------------------------------------------------

type Normalizer struct {
	MinTime int64
	MaxTime int64
	HasData bool
}

// -----------------------------------------------------------------------------

// NewNormalizer scans every sample of every series and fixes the global time
// range. Samples with unusable timestamps are ignored.
func NewNormalizer(series ...[]models.MSample) *Normalizer {
	n := &Normalizer{}
	for _, s := range series {
		for _, sample := range s {
			ms := CoerceTimestampMillis(sample.Timestamp)
			if ms == nil {
				continue
			}
			if !n.HasData {
				n.MinTime = *ms
				n.MaxTime = *ms
				n.HasData = true
				continue
			}
			if *ms < n.MinTime {
				n.MinTime = *ms
			}
			if *ms > n.MaxTime {
				n.MaxTime = *ms
			}
		}
	}
	return n
}

// -----------------------------------------------------------------------------

// TimeRange returns the observed min and max in epoch milliseconds.
func (n *Normalizer) TimeRange() (int64, int64) {
	return n.MinTime, n.MaxTime
}

// -----------------------------------------------------------------------------

// Normalize maps one raw timestamp onto [0, 1]. Returns nil for unusable
// timestamps. A degenerate range (no data, or a single instant) maps to 0.
func (n *Normalizer) Normalize(raw interface{}) *float64 {
	ms := CoerceTimestampMillis(raw)
	if ms == nil {
		return nil
	}

	zero := 0.0
	if !n.HasData || n.MaxTime == n.MinTime {
		return &zero
	}

	v := float64(*ms-n.MinTime) / float64(n.MaxTime-n.MinTime)
	return &v
}

// -----------------------------------------------------------------------------

// NormalizeSeries converts raw samples into chart points on the shared axis.
// Samples with unusable timestamps or non-finite values are dropped; the input
// order is preserved and the input slice is never mutated.
func (n *Normalizer) NormalizeSeries(data []models.MSample) []models.MChartPoint {
	points := make([]models.MChartPoint, 0, len(data))
	for _, sample := range data {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			continue
		}
		t := n.Normalize(sample.Timestamp)
		if t == nil {
			continue
		}
		points = append(points, models.MChartPoint{Time: *t, Value: sample.Value})
	}
	return points
}

// -----------------------------------------------------------------------------

// SortPointsByTime orders chart points by their normalized time, in place.
func SortPointsByTime(points []models.MChartPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
}
