package pricefeed

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hypersync/src/helpers"
	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
	"hypersync/src/utils"
)

// -----------------------------------------------------------------------------
// PriceCache multiplexes one allMids websocket subscription across any number
// of listeners. The socket lives while at least one listener is registered;
// the raw mid snapshot survives teardown so a resubscribe replays instantly.
// -----------------------------------------------------------------------------

const dialTimeout = 10 * time.Second

type listenerEntry struct {
	id       uuid.UUID
	symbols  []string
	listener interfaces.PriceListener
	disposed bool
}

type PriceCache struct {
	Config *models.MConfig
	Logger *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connGen   int // bumped on every teardown; stale read loops see it and exit
	listeners []*listenerEntry
	lastMids  map[string]float64
	tickers   map[string]models.MTicker
	closed    bool

	msgCount uint64
}

// compile-time interface check
var _ interfaces.IPriceFeed = (*PriceCache)(nil)

// -----------------------------------------------------------------------------

func NewPriceCache(cfg *models.MConfig, log *logger.Logger) *PriceCache {
	return &PriceCache{
		Config:   cfg,
		Logger:   log,
		lastMids: make(map[string]float64),
		tickers:  make(map[string]models.MTicker),
	}
}

// -----------------------------------------------------------------------------

// normalizeSymbols uppercases, trims, and dedupes while preserving order.
// An empty result falls back to the configured defaults.
func (pc *PriceCache) normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return pc.normalizeSymbols(pc.Config.Feed.DefaultSymbols)
	}
	return out
}

// -----------------------------------------------------------------------------

// Subscribe registers a listener and returns its disposer. When cached mids
// exist the listener receives a synchronous snapshot before Subscribe returns.
func (pc *PriceCache) Subscribe(symbols []string, listener interfaces.PriceListener) func() {
	normalized := pc.normalizeSymbols(symbols)

	entry := &listenerEntry{
		id:       uuid.New(),
		symbols:  normalized,
		listener: listener,
	}

	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return func() {}
	}

	wasEmpty := len(pc.listeners) == 0
	pc.listeners = append(pc.listeners, entry)

	for _, sym := range normalized {
		if _, ok := pc.tickers[sym]; !ok {
			pc.tickers[sym] = models.MTicker{Symbol: sym, IsLoading: true}
		}
	}

	var replay []models.MAssetPrice
	if len(pc.lastMids) > 0 {
		replay = pc.assetsForLocked(normalized)
	}
	gen := pc.connGen
	pc.mu.Unlock()

	pc.Logger.Debug("Listener %s subscribed for %d symbols", entry.id, len(normalized))

	// Snapshot replay happens outside the lock, the callback may call back in.
	if replay != nil && listener.OnUpdate != nil {
		listener.OnUpdate(replay)
	}

	if wasEmpty {
		go pc.runLoop(gen)
	}

	return func() { pc.unsubscribe(entry) }
}

// -----------------------------------------------------------------------------

// unsubscribe removes one listener. Safe to call more than once.
func (pc *PriceCache) unsubscribe(entry *listenerEntry) {
	pc.mu.Lock()
	if entry.disposed {
		pc.mu.Unlock()
		return
	}
	entry.disposed = true

	for i, e := range pc.listeners {
		if e == entry {
			pc.listeners = append(pc.listeners[:i], pc.listeners[i+1:]...)
			break
		}
	}

	last := len(pc.listeners) == 0
	if last && !pc.closed {
		// Ticker records go, the raw snapshot stays for the next subscriber.
		pc.teardownLocked()
		pc.tickers = make(map[string]models.MTicker)
	}
	pc.mu.Unlock()

	pc.Logger.Debug("Listener %s unsubscribed (last=%v)", entry.id, last)
}

// -----------------------------------------------------------------------------

// teardownLocked invalidates the current connection generation and closes the
// socket. Callers hold pc.mu.
func (pc *PriceCache) teardownLocked() {
	pc.connGen++
	if pc.conn != nil {
		pc.conn.Close()
		pc.conn = nil
	}
}

// -----------------------------------------------------------------------------

// Refresh drops the current socket and dials again. Without listeners there
// is nothing to refresh.
func (pc *PriceCache) Refresh() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return &helpers.FeedError{SyncError: helpers.SyncError{
			Message: "refresh",
			Cause:   helpers.ErrNotRunning,
		}}
	}
	if len(pc.listeners) == 0 {
		pc.mu.Unlock()
		return nil
	}
	pc.teardownLocked()
	gen := pc.connGen
	pc.mu.Unlock()

	pc.Logger.Info("Manual feed refresh requested")
	go pc.runLoop(gen)
	return nil
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of the last-known mids.
func (pc *PriceCache) Snapshot() map[string]float64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	out := make(map[string]float64, len(pc.lastMids))
	for k, v := range pc.lastMids {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

// Tickers returns a copy of the tracked ticker records.
func (pc *PriceCache) Tickers() map[string]models.MTicker {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	out := make(map[string]models.MTicker, len(pc.tickers))
	for k, v := range pc.tickers {
		out[k] = v
	}
	return out
}

// -----------------------------------------------------------------------------

func (pc *PriceCache) ListenerCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.listeners)
}

// -----------------------------------------------------------------------------

// MessageCount reports how many feed messages have been processed.
func (pc *PriceCache) MessageCount() uint64 {
	return atomic.LoadUint64(&pc.msgCount)
}

// -----------------------------------------------------------------------------

// Close shuts the feed down for good.
func (pc *PriceCache) Close() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	pc.teardownLocked()
	pc.mu.Unlock()

	pc.Logger.Info("Price feed closed")
	return nil
}

// -----------------------------------------------------------------------------
// Connection loop
// -----------------------------------------------------------------------------

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsAllMids struct {
	Mids map[string]string `json:"mids"`
}

type wsErrorData struct {
	Error string `json:"error"`
}

// -----------------------------------------------------------------------------

// runLoop owns the socket for one connection generation. It dials, subscribes,
// reads until failure, and redials with exponential backoff until its
// generation is invalidated.
func (pc *PriceCache) runLoop(gen int) {
	policy := utils.NewFeedBackoff(pc.Config)

	for {
		if pc.generationStale(gen) {
			return
		}

		conn, err := pc.dial(gen)
		if err != nil {
			if pc.generationStale(gen) {
				return
			}
			pc.Logger.Warning("Feed dial failed: %v", err)
			pc.notifyError(&helpers.FeedError{SyncError: helpers.SyncError{
				Message: "feed connection failed",
				Cause:   err,
			}})
			time.Sleep(policy.NextBackOff())
			continue
		}

		policy.Reset()
		pc.Logger.Info("Feed connected to %s", pc.Config.Feed.URL)

		// A fresh connection replays the retained snapshot so listeners are
		// never left staring at stale loading flags.
		pc.replaySnapshot()

		readErr := pc.readLoop(conn, gen)
		if pc.generationStale(gen) {
			return
		}

		pc.Logger.Warning("Feed read loop ended: %v", readErr)
		pc.notifyError(&helpers.FeedError{SyncError: helpers.SyncError{
			Message: "feed disconnected",
			Cause:   readErr,
		}})
		pc.markTickersError("feed disconnected")
		time.Sleep(policy.NextBackOff())
	}
}

// -----------------------------------------------------------------------------

func (pc *PriceCache) generationStale(gen int) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.closed || pc.connGen != gen
}

// -----------------------------------------------------------------------------

// dial opens the socket and sends the allMids subscription.
func (pc *PriceCache) dial(gen int) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(pc.Config.Feed.URL, nil)
	if err != nil {
		return nil, err
	}

	sub := map[string]interface{}{
		"method": "subscribe",
		"subscription": map[string]string{
			"type": "allMids",
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}

	pc.mu.Lock()
	if pc.closed || pc.connGen != gen {
		pc.mu.Unlock()
		conn.Close()
		return nil, &helpers.FeedError{SyncError: helpers.SyncError{Message: "connection superseded"}}
	}
	pc.conn = conn
	pc.mu.Unlock()

	return conn, nil
}

// -----------------------------------------------------------------------------

// readLoop consumes messages until the socket fails or the generation dies.
func (pc *PriceCache) readLoop(conn *websocket.Conn, gen int) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env wsEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			pc.Logger.Debug("Skipping malformed feed message: %v", err)
			continue
		}

		switch env.Channel {
		case "allMids":
			var mids wsAllMids
			if err := json.Unmarshal(env.Data, &mids); err != nil {
				pc.Logger.Debug("Skipping malformed allMids payload: %v", err)
				continue
			}
			atomic.AddUint64(&pc.msgCount, 1)
			pc.applyMids(mids.Mids, gen)

		case "error":
			var ed wsErrorData
			_ = json.Unmarshal(env.Data, &ed)
			pc.Logger.Warning("Feed error channel: %s", ed.Error)
			pc.notifyError(&helpers.FeedError{SyncError: helpers.SyncError{
				Message: "feed reported error: " + ed.Error,
			}})

		case "subscriptionResponse":
			pc.Logger.Debug("Feed subscription acknowledged")

		default:
			// Other channels are not subscribed; ignore quietly.
		}

		if pc.generationStale(gen) {
			return nil
		}
	}
}

// -----------------------------------------------------------------------------

// applyMids folds one inbound mid map into the cache and fans the update out.
// Unparseable or non-finite prices leave the previous value in place.
func (pc *PriceCache) applyMids(mids map[string]string, gen int) {
	now := time.Now().UnixMilli()

	pc.mu.Lock()
	if pc.closed || pc.connGen != gen {
		pc.mu.Unlock()
		return
	}

	for sym, raw := range mids {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pc.lastMids[sym] = v

		if t, ok := pc.tickers[sym]; ok {
			price := v
			t.Price = &price
			t.LastUpdated = now
			t.IsLoading = false
			t.IsUpdating = false
			t.Error = ""
			pc.tickers[sym] = t
		}
	}

	type delivery struct {
		fn     func([]models.MAssetPrice)
		assets []models.MAssetPrice
	}
	deliveries := make([]delivery, 0, len(pc.listeners))
	for _, e := range pc.listeners {
		if e.listener.OnUpdate == nil {
			continue
		}
		deliveries = append(deliveries, delivery{
			fn:     e.listener.OnUpdate,
			assets: pc.assetsForLocked(e.symbols),
		})
	}
	pc.mu.Unlock()

	// Callbacks run outside the lock, in registration order.
	for _, d := range deliveries {
		d.fn(d.assets)
	}
}

// -----------------------------------------------------------------------------

// assetsForLocked builds the complete per-symbol array for one listener.
// Symbols without a cached mid get a nil price. Callers hold pc.mu.
func (pc *PriceCache) assetsForLocked(symbols []string) []models.MAssetPrice {
	assets := make([]models.MAssetPrice, 0, len(symbols))
	for _, sym := range symbols {
		var price *float64
		if v, ok := pc.lastMids[sym]; ok {
			p := v
			price = &p
		}
		assets = append(assets, models.MAssetPrice{Symbol: sym, Price: price})
	}
	return assets
}

// -----------------------------------------------------------------------------

// replaySnapshot pushes the retained snapshot to every current listener.
func (pc *PriceCache) replaySnapshot() {
	pc.mu.Lock()
	if len(pc.lastMids) == 0 {
		pc.mu.Unlock()
		return
	}
	type delivery struct {
		fn     func([]models.MAssetPrice)
		assets []models.MAssetPrice
	}
	deliveries := make([]delivery, 0, len(pc.listeners))
	for _, e := range pc.listeners {
		if e.listener.OnUpdate == nil {
			continue
		}
		deliveries = append(deliveries, delivery{
			fn:     e.listener.OnUpdate,
			assets: pc.assetsForLocked(e.symbols),
		})
	}
	pc.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.assets)
	}
}

// -----------------------------------------------------------------------------

// notifyError fans an error out to every listener's OnError callback.
func (pc *PriceCache) notifyError(err error) {
	pc.mu.Lock()
	callbacks := make([]func(error), 0, len(pc.listeners))
	for _, e := range pc.listeners {
		if e.listener.OnError != nil {
			callbacks = append(callbacks, e.listener.OnError)
		}
	}
	pc.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
}

// -----------------------------------------------------------------------------

// markTickersError flags every tracked ticker after a transport failure.
// Prices keep their last value; only the error flag changes.
func (pc *PriceCache) markTickersError(msg string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for sym, t := range pc.tickers {
		t.Error = msg
		t.IsUpdating = true
		pc.tickers[sym] = t
	}
}
