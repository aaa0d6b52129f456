package interfaces

import "hypersync/src/models"

// -----------------------------------------------------------------------------
// IPriceFeed is the contract of the streaming price cache.
// -----------------------------------------------------------------------------

// PriceListener carries one consumer's callbacks. OnUpdate always receives the
// complete asset array for the listener's symbol set, in symbol order.
type PriceListener struct {
	OnUpdate func(assets []models.MAssetPrice)
	OnError  func(err error)
}

type IPriceFeed interface {

	// Subscribe registers interest in a symbol set and returns an idempotent
	// disposer. Empty or invalid input falls back to the configured default
	// symbols. If a snapshot is cached it is replayed to the new listener
	// before Subscribe returns.
	Subscribe(symbols []string, listener PriceListener) func()

	// -----------------------------------------------------------------------------

	// Refresh forces a close-and-reconnect cycle. No-op without listeners.
	Refresh() error

	// -----------------------------------------------------------------------------

	// Snapshot returns a copy of the last-known mid prices.
	Snapshot() map[string]float64

	// -----------------------------------------------------------------------------

	// Tickers returns the live ticker records for all tracked symbols.
	Tickers() map[string]models.MTicker

	// -----------------------------------------------------------------------------

	// ListenerCount reports how many listeners are registered.
	ListenerCount() int

	// -----------------------------------------------------------------------------

	// Close tears the transport down regardless of listeners. Idempotent.
	Close() error
}
