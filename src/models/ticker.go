package models

// MTicker represents one symbol's live market view.
// Price is either a finite number or nil; NaN never reaches consumers.
type MTicker struct {
	Symbol      string   `json:"symbol"`
	Price       *float64 `json:"price"`
	LastUpdated int64    `json:"last_updated"` // epoch millis
	IsLoading   bool     `json:"is_loading"`
	IsUpdating  bool     `json:"is_updating"`
	Error       string   `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------

// MAssetPrice is the per-symbol item delivered to feed listeners.
// Every delivery carries the listener's full symbol set (nil price for
// symbols absent from the inbound map), never a partial array.
type MAssetPrice struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
}
