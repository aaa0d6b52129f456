package models

// -----------------------------------------------------------------------------
// Chart Series Structures
// -----------------------------------------------------------------------------

// MChartPoint is a chart-relative sample: Time is rescaled to [0,1] against
// the global min/max timestamp of the series set it was normalized with.
type MChartPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// MTimePoint is an absolute sample on an epoch-millis axis.
type MTimePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// -----------------------------------------------------------------------------

// MSample is a raw, unnormalized sample. Timestamp is deliberately loose:
// upstream sources deliver ISO strings, epoch seconds, or epoch millis, and
// the normalizer coerces them to a single scale.
type MSample struct {
	Timestamp interface{} `json:"timestamp"`
	Value     float64     `json:"value"`
}

// -----------------------------------------------------------------------------

// MAgentLine is one agent's percent-change equity line on a shared time axis.
type MAgentLine struct {
	AgentID string        `json:"agent_id"`
	Name    string        `json:"name"`
	Points  []MChartPoint `json:"points"`
}
