package interfaces

import (
	"context"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// IAccountClient fetches raw per-account state from the exchange info endpoint.
// -----------------------------------------------------------------------------

type IAccountClient interface {

	// ClearinghouseState returns margin summary plus open positions.
	ClearinghouseState(ctx context.Context, user string) (*models.MRawAccount, error)

	// -----------------------------------------------------------------------------

	// Portfolio returns historical account-value series keyed by timeframe
	// ("day", "week", "month", "allTime").
	Portfolio(ctx context.Context, user string) (map[string][]models.MEquityPoint, error)

	// -----------------------------------------------------------------------------

	// CandleSnapshot returns OHLC history for one coin/interval from startTime
	// (epoch millis), timestamps normalized to millis regardless of the scale
	// the exchange answered in.
	CandleSnapshot(ctx context.Context, coin, interval string, startTime int64) ([]models.MCandle, error)
}
