package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
	"hypersync/src/utils"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeClient struct {
	account   *models.MRawAccount
	portfolio map[string][]models.MEquityPoint
	err       error
}

func (f *fakeClient) ClearinghouseState(ctx context.Context, user string) (*models.MRawAccount, error) {
	return f.account, f.err
}

func (f *fakeClient) Portfolio(ctx context.Context, user string) (map[string][]models.MEquityPoint, error) {
	return f.portfolio, f.err
}

func (f *fakeClient) CandleSnapshot(ctx context.Context, coin, interval string, startTime int64) ([]models.MCandle, error) {
	return nil, nil
}

type fakeFeed struct {
	mids map[string]float64
}

func (f *fakeFeed) Subscribe(symbols []string, l interfaces.PriceListener) func() { return func() {} }
func (f *fakeFeed) Refresh() error                                               { return nil }
func (f *fakeFeed) Snapshot() map[string]float64                                 { return f.mids }
func (f *fakeFeed) Tickers() map[string]models.MTicker                           { return nil }
func (f *fakeFeed) ListenerCount() int                                           { return 0 }
func (f *fakeFeed) Close() error                                                 { return nil }

// -----------------------------------------------------------------------------

func testConfig() *models.MConfig {
	return &models.MConfig{
		Name:     "test",
		LogLevel: "ERROR",
		Feed: models.MFeedConfig{
			DefaultSymbols: []string{"BTC"},
		},
		Account: models.MAccountConfig{
			Address:             "0xabc",
			PollIntervalSeconds: 60,
			EquityHistorySize:   10,
		},
		Timeframes: utils.DefaultTimeframes,
	}
}

func newTestAggregator(client interfaces.IAccountClient, feed interfaces.IPriceFeed) *Aggregator {
	cfg := testConfig()
	return NewAggregator(cfg, client, feed, logger.NewLogger(cfg, "test"))
}

// -----------------------------------------------------------------------------

func TestAggregator_FetchCommitsState(t *testing.T) {
	client := &fakeClient{
		account: &models.MRawAccount{
			AccountValue:    150,
			TotalNotional:   300,
			TotalMarginUsed: 75,
			Positions: []models.MRawPosition{
				{Coin: "BTC", Size: 1, EntryPrice: fp(100), UnrealizedPnl: fp(42)},
			},
		},
		portfolio: map[string][]models.MEquityPoint{
			utils.TimeframeAllTime: {
				{Timestamp: 1, Value: 100},
				{Timestamp: 2, Value: 150},
			},
		},
	}
	ag := newTestAggregator(client, &fakeFeed{})

	ag.fetchOnce(context.Background())

	state := ag.State()
	assert.False(t, state.IsLoading)
	assert.Equal(t, 150.0, state.AccountValue)
	require.Len(t, state.Positions, 1)
	assert.Equal(t, 42.0, state.Positions[0].UnrealizedPnl)
	require.NotNil(t, state.TotalPnl)
	assert.InDelta(t, 50.0, *state.TotalPnl, 1e-9)

	// Equity curve sampled on commit.
	history := ag.EquityHistory()
	require.Len(t, history, 1)
	assert.Equal(t, 150.0, history[0].Value)
}

// -----------------------------------------------------------------------------

func TestAggregator_StaleCommitDiscarded(t *testing.T) {
	ag := newTestAggregator(&fakeClient{}, &fakeFeed{})

	newer := models.MAccountState{Address: "0xabc", AccountValue: 200, UpdatedAt: 2}
	older := models.MAccountState{Address: "0xabc", AccountValue: 100, UpdatedAt: 1}

	// Fetch 2 lands before fetch 1; fetch 1 must be dropped.
	ag.commit(2, &models.MRawAccount{AccountValue: 200}, nil, newer)
	ag.commit(1, &models.MRawAccount{AccountValue: 100}, nil, older)

	assert.Equal(t, 200.0, ag.State().AccountValue)
	assert.Len(t, ag.EquityHistory(), 1)
}

// -----------------------------------------------------------------------------

func TestAggregator_ErrorKeepsLastGoodState(t *testing.T) {
	client := &fakeClient{
		account:   &models.MRawAccount{AccountValue: 150},
		portfolio: map[string][]models.MEquityPoint{},
	}
	ag := newTestAggregator(client, &fakeFeed{})

	ag.fetchOnce(context.Background())
	require.Equal(t, 150.0, ag.State().AccountValue)

	client.err = assert.AnError
	ag.fetchOnce(context.Background())

	state := ag.State()
	assert.Equal(t, 150.0, state.AccountValue)
	assert.NotEmpty(t, state.Error)
	assert.False(t, state.IsLoading)
}

// -----------------------------------------------------------------------------

func TestAggregator_RecomputeMarksUsesFreshMids(t *testing.T) {
	feed := &fakeFeed{mids: map[string]float64{}}
	client := &fakeClient{
		account: &models.MRawAccount{
			AccountValue: 1000,
			Positions: []models.MRawPosition{
				{Coin: "BTC", Size: 1, EntryPrice: fp(100), PositionValue: 100},
			},
		},
		portfolio: map[string][]models.MEquityPoint{},
	}
	ag := newTestAggregator(client, feed)

	ag.fetchOnce(context.Background())
	require.Len(t, ag.State().Positions, 1)
	assert.Equal(t, 100.0, ag.State().Positions[0].MarkPrice)

	// A new mid arrives; marks and recomputed PnL follow it.
	feed.mids = map[string]float64{"BTC": 120}
	ag.recomputeMarks()

	pos := ag.State().Positions[0]
	assert.Equal(t, 120.0, pos.MarkPrice)
	assert.InDelta(t, 20.0, pos.UnrealizedPnl, 1e-9)
}

// -----------------------------------------------------------------------------

func TestAggregator_UpdatesSignalCoalesces(t *testing.T) {
	ag := newTestAggregator(&fakeClient{
		account:   &models.MRawAccount{AccountValue: 1},
		portfolio: map[string][]models.MEquityPoint{},
	}, &fakeFeed{})

	// Multiple notifies collapse into at most one pending signal.
	ag.notify()
	ag.notify()
	ag.notify()

	select {
	case <-ag.Updates():
	default:
		t.Fatal("expected a pending update signal")
	}

	select {
	case <-ag.Updates():
		t.Fatal("signals should coalesce")
	default:
	}
}
