package analysis

import (
	"math"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// Agent performance lines. Each agent's equity snapshots are turned into a
// percent-change-from-initial-capital series on the shared normalized axis.
// -----------------------------------------------------------------------------

// BuildAgentLines builds one chart line per agent from its equity snapshots.
// The normalizer spans every agent's samples plus any extra series (price
// history, sentiment) so all lines share the same axis. Agents with a zero or
// non-finite initial capital are skipped, percent change is undefined there.
func BuildAgentLines(agents []models.MAgent, snapshots map[string][]models.MSample, extra ...[]models.MSample) []models.MAgentLine {
	all := make([][]models.MSample, 0, len(agents)+len(extra))
	for _, agent := range agents {
		all = append(all, snapshots[agent.ID])
	}
	all = append(all, extra...)

	normalizer := NewNormalizer(all...)

	lines := make([]models.MAgentLine, 0, len(agents))
	for _, agent := range agents {
		ic := agent.InitialCapital
		if ic == 0 || math.IsNaN(ic) || math.IsInf(ic, 0) {
			continue
		}

		samples := snapshots[agent.ID]
		points := make([]models.MChartPoint, 0, len(samples))
		for _, sample := range samples {
			if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
				continue
			}
			t := normalizer.Normalize(sample.Timestamp)
			if t == nil {
				continue
			}
			pct := (sample.Value - ic) / ic * 100
			points = append(points, models.MChartPoint{Time: *t, Value: pct})
		}
		SortPointsByTime(points)

		lines = append(lines, models.MAgentLine{
			AgentID: agent.ID,
			Name:    agent.Name,
			Points:  points,
		})
	}

	return lines
}

// -----------------------------------------------------------------------------

// SnapshotSamples adapts backend equity snapshots to raw chart samples.
func SnapshotSamples(snapshots []models.MSnapshot) []models.MSample {
	samples := make([]models.MSample, 0, len(snapshots))
	for _, s := range snapshots {
		samples = append(samples, models.MSample{Timestamp: s.CreatedAt, Value: s.Equity})
	}
	return samples
}

// -----------------------------------------------------------------------------

// CandleSamples adapts cached candles to raw chart samples using close values.
func CandleSamples(candles []models.MCandle) []models.MSample {
	samples := make([]models.MSample, 0, len(candles))
	for _, c := range candles {
		samples = append(samples, models.MSample{Timestamp: c.CloseTime, Value: c.Close})
	}
	return samples
}

// -----------------------------------------------------------------------------

// SentimentSamples adapts sentiment scores to raw chart samples.
func SentimentSamples(rows []models.MSentiment) []models.MSample {
	samples := make([]models.MSample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, models.MSample{Timestamp: r.CreatedAt, Value: r.Score})
	}
	return samples
}
