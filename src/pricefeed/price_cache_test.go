package pricefeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// Test feed server. Each connection reads the subscribe request and then
// relays whatever mid maps the test pushes in.
// -----------------------------------------------------------------------------

type feedServer struct {
	srv      *httptest.Server
	mu       sync.Mutex
	conns    []*websocket.Conn
	received chan map[string]interface{}
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()

	fs := &feedServer{
		received: make(chan map[string]interface{}, 16),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.mu.Unlock()

		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case fs.received <- msg:
			default:
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

// sendMids pushes one allMids frame on every live connection.
func (fs *feedServer) sendMids(t *testing.T, mids map[string]string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"channel": "allMids",
		"data":    map[string]interface{}{"mids": mids},
	})
	require.NoError(t, err)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, conn := range fs.conns {
		conn.WriteMessage(websocket.TextMessage, payload)
	}
}

// -----------------------------------------------------------------------------

func feedConfig(url string) *models.MConfig {
	return &models.MConfig{
		Name:     "test",
		LogLevel: "ERROR",
		Feed: models.MFeedConfig{
			URL:                     url,
			DefaultSymbols:          []string{"BTC", "ETH"},
			ReconnectInitialSeconds: 1,
			ReconnectMaxSeconds:     2,
		},
	}
}

func newTestCache(url string) *PriceCache {
	cfg := feedConfig(url)
	return NewPriceCache(cfg, logger.NewLogger(cfg, "test"))
}

// collect wires a listener whose updates land on a channel.
func collect() (interfaces.PriceListener, chan []models.MAssetPrice) {
	ch := make(chan []models.MAssetPrice, 16)
	return interfaces.PriceListener{
		OnUpdate: func(assets []models.MAssetPrice) { ch <- assets },
	}, ch
}

func waitUpdate(t *testing.T, ch chan []models.MAssetPrice) []models.MAssetPrice {
	t.Helper()
	select {
	case assets := <-ch:
		return assets
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}

// -----------------------------------------------------------------------------

func TestPriceCache_DeliversCompleteSymbolArrays(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	listener, updates := collect()
	dispose := cache.Subscribe([]string{"btc", "DOGE"}, listener)
	defer dispose()

	// Wait for the upstream subscription before pushing frames.
	select {
	case msg := <-fs.received:
		assert.Equal(t, "subscribe", msg["method"])
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the subscribe request")
	}

	fs.sendMids(t, map[string]string{"BTC": "50000.5"})

	assets := waitUpdate(t, updates)
	require.Len(t, assets, 2)

	// Symbols are uppercased and delivered in registration order.
	assert.Equal(t, "BTC", assets[0].Symbol)
	require.NotNil(t, assets[0].Price)
	assert.Equal(t, 50000.5, *assets[0].Price)

	// DOGE never appeared upstream: present with a nil price, never dropped.
	assert.Equal(t, "DOGE", assets[1].Symbol)
	assert.Nil(t, assets[1].Price)
}

// -----------------------------------------------------------------------------

func TestPriceCache_NonFinitePricesIgnored(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	listener, updates := collect()
	dispose := cache.Subscribe([]string{"BTC"}, listener)
	defer dispose()

	<-fs.received
	fs.sendMids(t, map[string]string{"BTC": "100"})
	waitUpdate(t, updates)

	// NaN and garbage leave the previous price in place.
	fs.sendMids(t, map[string]string{"BTC": "NaN"})
	assets := waitUpdate(t, updates)
	require.NotNil(t, assets[0].Price)
	assert.Equal(t, 100.0, *assets[0].Price)
}

// -----------------------------------------------------------------------------

func TestPriceCache_EmptySymbolsFallBackToDefaults(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	listener, updates := collect()
	dispose := cache.Subscribe(nil, listener)
	defer dispose()

	<-fs.received
	fs.sendMids(t, map[string]string{"BTC": "1", "ETH": "2"})

	assets := waitUpdate(t, updates)
	require.Len(t, assets, 2)
	assert.Equal(t, "BTC", assets[0].Symbol)
	assert.Equal(t, "ETH", assets[1].Symbol)
}

// -----------------------------------------------------------------------------

func TestPriceCache_UnsubscribeIsIdempotent(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	l1, _ := collect()
	l2, _ := collect()
	d1 := cache.Subscribe([]string{"BTC"}, l1)
	d2 := cache.Subscribe([]string{"ETH"}, l2)

	require.Equal(t, 2, cache.ListenerCount())

	d1()
	d1() // second call must not touch the other listener
	d1()

	assert.Equal(t, 1, cache.ListenerCount())
	d2()
	assert.Equal(t, 0, cache.ListenerCount())
}

// -----------------------------------------------------------------------------

func TestPriceCache_SnapshotReplayAfterFullUnsubscribe(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	l1, updates := collect()
	dispose := cache.Subscribe([]string{"BTC"}, l1)

	<-fs.received
	fs.sendMids(t, map[string]string{"BTC": "42000"})
	waitUpdate(t, updates)

	// Last listener leaves: socket drops, tickers reset, snapshot retained.
	dispose()
	require.Equal(t, 0, cache.ListenerCount())
	assert.Empty(t, cache.Tickers())

	// A fresh subscriber gets the cached snapshot synchronously, before any
	// new frame arrives.
	l2, replayed := collect()
	d2 := cache.Subscribe([]string{"BTC"}, l2)
	defer d2()

	assets := waitUpdate(t, replayed)
	require.Len(t, assets, 1)
	require.NotNil(t, assets[0].Price)
	assert.Equal(t, 42000.0, *assets[0].Price)
}

// -----------------------------------------------------------------------------

func TestPriceCache_SnapshotCopies(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	listener, updates := collect()
	dispose := cache.Subscribe([]string{"BTC"}, listener)
	defer dispose()

	<-fs.received
	fs.sendMids(t, map[string]string{"BTC": "100"})
	waitUpdate(t, updates)

	snap := cache.Snapshot()
	require.Equal(t, 100.0, snap["BTC"])

	// Mutating the returned map must not leak into the cache.
	snap["BTC"] = -1
	assert.Equal(t, 100.0, cache.Snapshot()["BTC"])
}

// -----------------------------------------------------------------------------

func TestPriceCache_CloseIsIdempotent(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())

	listener, _ := collect()
	cache.Subscribe([]string{"BTC"}, listener)

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())

	// Subscribing after close is a no-op disposer.
	dispose := cache.Subscribe([]string{"ETH"}, listener)
	dispose()
	assert.Equal(t, 0, cache.ListenerCount())
}

// -----------------------------------------------------------------------------

func TestPriceCache_RefreshWithoutListeners(t *testing.T) {
	fs := newFeedServer(t)
	cache := newTestCache(fs.url())
	defer cache.Close()

	// No listeners: nothing to refresh, no error.
	assert.NoError(t, cache.Refresh())
}
