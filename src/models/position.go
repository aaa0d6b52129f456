package models

// Position sides, derived from the sign of the exchange-reported size.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// -----------------------------------------------------------------------------

// MPosition is a normalized open perpetual position.
type MPosition struct {
	Symbol           string   `json:"symbol"`
	Side             string   `json:"side"`
	Size             float64  `json:"size"` // signed, negative = short
	EntryPrice       float64  `json:"entry_price"`
	MarkPrice        float64  `json:"mark_price"`
	Leverage         float64  `json:"leverage"`
	MarginUsed       float64  `json:"margin_used"`
	LiquidationPrice *float64 `json:"liquidation_price"`
	UnrealizedPnl    float64  `json:"unrealized_pnl"`
	PnlPercent       *float64 `json:"pnl_percent"` // nil when entry price is zero
}

// -----------------------------------------------------------------------------

// MPnLSummary holds first/last/delta/percent equity figures for one
// timeframe window. The four fields are all nil or all populated,
// except PnlPct which is additionally nil when First is zero.
type MPnLSummary struct {
	First  *float64 `json:"first"`
	Last   *float64 `json:"last"`
	Pnl    *float64 `json:"pnl"`
	PnlPct *float64 `json:"pnl_pct"`
}

// -----------------------------------------------------------------------------

// MAccountState is the aggregator's derived view of one account.
type MAccountState struct {
	Address      string                 `json:"address"`
	Positions    []MPosition            `json:"positions"`
	AccountValue float64                `json:"account_value"`
	OpenPnl      float64                `json:"open_pnl"`
	OpenPnlPct   *float64               `json:"open_pnl_pct"`
	TotalPnl     *float64               `json:"total_pnl"`
	TotalPnlPct  *float64               `json:"total_pnl_pct"`
	Leverage     *float64               `json:"leverage"` // aggregate notional / equity
	Summaries    map[string]MPnLSummary `json:"summaries"`
	IsLoading    bool                   `json:"is_loading"`
	Error        string                 `json:"error,omitempty"`
	UpdatedAt    int64                  `json:"updated_at"` // epoch millis
}

// -----------------------------------------------------------------------------
// Raw exchange shapes (parsed from clearinghouseState / portfolio responses)
// -----------------------------------------------------------------------------

// MRawPosition mirrors one assetPositions entry after decimal-string parsing.
// Pointer fields are nil when the exchange omitted or sent a non-finite value.
type MRawPosition struct {
	Coin             string
	Size             float64 // szi, signed
	EntryPrice       *float64
	PositionValue    float64
	UnrealizedPnl    *float64
	Leverage         float64
	MarginUsed       float64
	LiquidationPrice *float64
}

// MRawAccount mirrors the clearinghouseState margin summary plus positions.
type MRawAccount struct {
	AccountValue    float64
	TotalNotional   float64
	TotalMarginUsed float64
	Positions       []MRawPosition
}

// MEquityPoint is one sample of historical account value.
type MEquityPoint struct {
	Timestamp int64   `json:"timestamp"` // epoch millis
	Value     float64 `json:"value"`
}
