package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type      string             `json:"type"` // "INITIAL" or "UPDATE"
	Tickers   map[string]MTicker `json:"tickers"`
	Account   *MAccountState     `json:"account"`
	Timestamp int64              `json:"timestamp"`
	Metrics   MSyncMetrics       `json:"metrics"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	Symbols []string `json:"symbols"`
}

// -----------------------------------------------------------------------------

// MSyncMetrics reports pipeline health alongside every broadcast.
type MSyncMetrics struct {
	FeedMessages   uint64  `json:"feed_messages"`
	RecomputeTime  float64 `json:"recompute_time_seconds"`
	TrackedSymbols int     `json:"tracked_symbols"`
	OpenPositions  int     `json:"open_positions"`
}
