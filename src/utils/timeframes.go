package utils

// -----------------------------------------------------------------------------
// Timeframe keys as reported by the portfolio endpoint.
// -----------------------------------------------------------------------------

const (
	TimeframeDay     = "day"
	TimeframeWeek    = "week"
	TimeframeMonth   = "month"
	TimeframeAllTime = "allTime"
)

// -----------------------------------------------------------------------------

// BaselinePreference orders timeframes widest-first for baseline-equity
// selection: total PnL anchors to the longest available history.
var BaselinePreference = []string{
	TimeframeAllTime,
	TimeframeMonth,
	TimeframeWeek,
	TimeframeDay,
}

// -----------------------------------------------------------------------------

// DefaultTimeframes is the summary set computed when config omits one.
var DefaultTimeframes = []string{
	TimeframeDay,
	TimeframeWeek,
	TimeframeMonth,
	TimeframeAllTime,
}
