package account

import (
	"context"
	"sync"
	"time"

	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
	"hypersync/src/utils"
)

// -----------------------------------------------------------------------------
// Aggregator maintains the derived account view. It polls the exchange for
// clearinghouse and portfolio data, recomputes position marks on every price
// tick, and discards fetch results that a newer fetch has already overtaken.
// -----------------------------------------------------------------------------

type Aggregator struct {
	Config *models.MConfig
	Client interfaces.IAccountClient
	Feed   interfaces.IPriceFeed
	Logger *logger.Logger

	mu        sync.Mutex
	state     models.MAccountState
	rawAcct   *models.MRawAccount
	summaries map[string]models.MPnLSummary
	fetchSeq  uint64 // last fetch started
	commitSeq uint64 // last fetch applied
	equity    *utils.EquityRing

	unsubscribe func()
	updates     chan struct{}
	stopOnce    sync.Once
	stopCh      chan struct{}
}

// -----------------------------------------------------------------------------

func NewAggregator(cfg *models.MConfig, client interfaces.IAccountClient, feed interfaces.IPriceFeed, log *logger.Logger) *Aggregator {
	return &Aggregator{
		Config: cfg,
		Client: client,
		Feed:   feed,
		Logger: log,
		state: models.MAccountState{
			Address:   cfg.Account.Address,
			IsLoading: true,
			Summaries: map[string]models.MPnLSummary{},
		},
		summaries: map[string]models.MPnLSummary{},
		equity:    utils.NewEquityRing(cfg.Account.EquityHistorySize),
		updates:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Updates signals that State changed. The channel is never closed and drops
// signals when the consumer lags; readers re-pull the full state anyway.
func (ag *Aggregator) Updates() <-chan struct{} {
	return ag.updates
}

func (ag *Aggregator) notify() {
	select {
	case ag.updates <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// State returns a copy of the current account view.
func (ag *Aggregator) State() models.MAccountState {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	return ag.state
}

// -----------------------------------------------------------------------------

// EquityHistory returns the sampled equity curve, oldest first.
func (ag *Aggregator) EquityHistory() []models.MEquityPoint {
	ag.mu.Lock()
	defer ag.mu.Unlock()
	return ag.equity.GetAll()
}

// -----------------------------------------------------------------------------

// Start launches the polling loop and hooks position marks to the price feed.
func (ag *Aggregator) Start(ctx context.Context, wg *sync.WaitGroup) {
	ag.unsubscribe = ag.Feed.Subscribe(ag.Config.Feed.DefaultSymbols, interfaces.PriceListener{
		OnUpdate: func(assets []models.MAssetPrice) {
			ag.recomputeMarks()
		},
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ag.pollLoop(ctx)
	}()

	ag.Logger.Info("Account aggregator started for %s", ag.Config.Account.Address)
}

// -----------------------------------------------------------------------------

// Stop halts polling and detaches from the feed. Idempotent.
func (ag *Aggregator) Stop() {
	ag.stopOnce.Do(func() {
		close(ag.stopCh)
		if ag.unsubscribe != nil {
			ag.unsubscribe()
		}
		ag.Logger.Info("Account aggregator stopped")
	})
}

// -----------------------------------------------------------------------------

func (ag *Aggregator) pollLoop(ctx context.Context) {
	// First fetch happens immediately, the ticker covers the rest.
	ag.fetchOnce(ctx)

	interval := time.Duration(ag.Config.Account.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ag.stopCh:
			return
		case <-ticker.C:
			ag.fetchOnce(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// fetchOnce pulls clearinghouse state and portfolio history, then commits the
// result unless a newer fetch has already landed.
func (ag *Aggregator) fetchOnce(ctx context.Context) {
	ag.mu.Lock()
	ag.fetchSeq++
	seq := ag.fetchSeq
	ag.state.IsLoading = ag.commitSeq == 0
	ag.mu.Unlock()

	started := time.Now()
	address := ag.Config.Account.Address

	var raw *models.MRawAccount
	var windows map[string][]models.MEquityPoint
	var rawErr, portErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, rawErr = ag.Client.ClearinghouseState(ctx, address)
	}()
	go func() {
		defer wg.Done()
		windows, portErr = ag.Client.Portfolio(ctx, address)
	}()
	wg.Wait()

	if rawErr != nil || portErr != nil {
		err := rawErr
		if err == nil {
			err = portErr
		}
		ag.Logger.Warning("Account fetch %d failed: %v", seq, err)
		ag.commitError(seq, err)
		return
	}

	mids := ag.Feed.Snapshot()
	summaries := summarize(windows, ag.Config.Timeframes)
	state := deriveState(address, raw, mids, summaries)
	state.UpdatedAt = time.Now().UnixMilli()

	ag.commit(seq, raw, summaries, state)
	ag.Logger.Debug("Account fetch %d committed in %s", seq, time.Since(started))
}

// -----------------------------------------------------------------------------

// commit applies a successful fetch. Results from a fetch older than the last
// committed one are discarded.
func (ag *Aggregator) commit(seq uint64, raw *models.MRawAccount, summaries map[string]models.MPnLSummary, state models.MAccountState) {
	ag.mu.Lock()
	if seq <= ag.commitSeq {
		ag.mu.Unlock()
		ag.Logger.Debug("Discarding stale account fetch %d (committed %d)", seq, ag.commitSeq)
		return
	}
	ag.commitSeq = seq
	ag.rawAcct = raw
	ag.summaries = summaries
	ag.state = state
	ag.equity.Append(state.UpdatedAt, state.AccountValue)
	ag.mu.Unlock()

	ag.notify()
}

// -----------------------------------------------------------------------------

// commitError flags the error on the last good state without discarding it.
func (ag *Aggregator) commitError(seq uint64, err error) {
	ag.mu.Lock()
	if seq <= ag.commitSeq {
		ag.mu.Unlock()
		return
	}
	ag.state.Error = err.Error()
	ag.state.IsLoading = ag.commitSeq == 0
	ag.mu.Unlock()

	ag.notify()
}

// -----------------------------------------------------------------------------

// recomputeMarks refreshes mark prices and open PnL from the latest mids
// without touching the fetched portfolio data.
func (ag *Aggregator) recomputeMarks() {
	mids := ag.Feed.Snapshot()

	ag.mu.Lock()
	if ag.rawAcct == nil {
		ag.mu.Unlock()
		return
	}
	state := deriveState(ag.state.Address, ag.rawAcct, mids, ag.summaries)
	state.UpdatedAt = time.Now().UnixMilli()
	state.Error = ag.state.Error
	ag.state = state
	ag.mu.Unlock()

	ag.notify()
}
