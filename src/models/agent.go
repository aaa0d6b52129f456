package models

import "time"

// MAgent is a trading agent row from the hosted backend.
type MAgent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	InitialCapital float64   `json:"initial_capital"`
	CreatedAt      time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------

// MSnapshot is one periodic equity sample for an agent.
type MSnapshot struct {
	AgentID   string    `json:"agent_id"`
	Equity    float64   `json:"equity"`
	CreatedAt time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------

// MSentiment is one market sentiment sample. Charts fold its timestamps into
// the shared axis even when no sentiment line is drawn.
type MSentiment struct {
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------

// MCandle is one OHLC candle, timestamps in epoch millis.
type MCandle struct {
	Coin      string  `json:"coin"`
	Interval  string  `json:"interval"`
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
