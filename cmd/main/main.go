package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hypersync/src/account"
	"hypersync/src/config"
	"hypersync/src/hyperliquid"
	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
	"hypersync/src/network"
	"hypersync/src/pricefeed"
	"hypersync/src/server"
	"hypersync/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.MConfig, config.Name)

	// 2. Storage: hosted backend (optional) and local candle cache
	var backend interfaces.IDatabase
	if config.Backend.ConnectionString != "" {
		db := storage.NewBackendDB(config.MConfig, appLogger)
		if err := db.Initialize(); err != nil {
			appLogger.Critical("Failed to connect backend: %v", err)
		}
		backend = db
		defer db.Close()
	} else {
		appLogger.Warning("No backend configured, agent chart endpoints disabled")
	}

	candles := storage.NewCandleCache(config.MConfig, appLogger)
	if err := candles.Initialize(); err != nil {
		appLogger.Critical("Failed to init candle cache: %v", err)
	}
	defer candles.Close()

	// 3. Exchange plumbing
	var networkManage interfaces.INetworkManager = network.NewAsyncNetworkManager(config.MConfig, appLogger)
	var infoClient interfaces.IAccountClient = hyperliquid.NewInfoClient(config.MConfig, networkManage, appLogger)

	feed := pricefeed.NewPriceCache(config.MConfig, appLogger)
	defer feed.Close()

	aggregator := account.NewAggregator(config.MConfig, infoClient, feed, appLogger)

	// 4. Server
	srv := server.NewSyncServer(config.MConfig, appLogger, feed, backend, candles)
	srv.Equity = aggregator.EquityHistory

	// Create context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapWg := &sync.WaitGroup{}

	// 5. Warm the candle cache in the background
	wrapWg.Add(1)
	go func() {
		defer wrapWg.Done()
		warmCandleCache(ctx, config.MConfig, infoClient, candles, appLogger)
	}()

	// 6. Tracked symbol subscription, rewireable from the control API
	updatesChan := make(chan []models.MAssetPrice, 100)
	listener := interfaces.PriceListener{
		OnUpdate: func(assets []models.MAssetPrice) {
			select {
			case updatesChan <- assets:
			default:
				// Consumer behind; the next tick carries fresher data anyway.
			}
		},
		OnError: func(err error) {
			appLogger.Warning("Feed error: %v", err)
		},
	}

	var subMu sync.Mutex
	unsubscribe := feed.Subscribe(config.Feed.DefaultSymbols, listener)

	srv.Resubscribe = func(symbols []string) error {
		subMu.Lock()
		defer subMu.Unlock()
		next := feed.Subscribe(symbols, listener)
		unsubscribe()
		unsubscribe = next
		appLogger.Info("Tracked symbols replaced (%d requested)", len(symbols))
		return nil
	}

	// 7. Start components
	aggregator.Start(ctx, wrapWg)

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	cleanupTicker := time.NewTicker(6 * time.Hour)
	defer cleanupTicker.Stop()

	appLogger.Info("Starting sync loop (Push Model)...")

	// 8. Main Loop (Push Model)
	for {
		select {
		case <-updatesChan:
			broadcastState(srv, feed, aggregator)

		case <-aggregator.Updates():
			broadcastState(srv, feed, aggregator)

		case <-cleanupTicker.C:
			if err := candles.CleanupOldData(); err != nil {
				appLogger.Warning("Candle cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			aggregator.Stop()
			subMu.Lock()
			unsubscribe()
			subMu.Unlock()
			cancel()
			wrapWg.Wait()
			srv.Stop()
			return
		}
	}
}

// -----------------------------------------------------------------------------

// broadcastState assembles the current pipeline view and fans it out.
func broadcastState(srv *server.SyncServer, feed *pricefeed.PriceCache, agg *account.Aggregator) {
	started := time.Now()

	tickers := feed.Tickers()
	state := agg.State()

	payload := &models.MLatestData{
		Type:      "UPDATE",
		Tickers:   tickers,
		Account:   &state,
		Timestamp: time.Now().UnixMilli(),
		Metrics: models.MSyncMetrics{
			FeedMessages:   feed.MessageCount(),
			RecomputeTime:  time.Since(started).Seconds(),
			TrackedSymbols: len(tickers),
			OpenPositions:  len(state.Positions),
		},
	}

	srv.UpdateState(payload)
	srv.Broadcast(payload)
}

// -----------------------------------------------------------------------------

// warmCandleCache tops the local candle store up for every default symbol so
// chart requests have history before the first live tick lands.
func warmCandleCache(ctx context.Context, cfg *models.MConfig, client interfaces.IAccountClient, store interfaces.ICandleStore, log *logger.Logger) {
	const interval = "1h"
	since := time.Now().AddDate(0, 0, -cfg.Storage.RetentionDays).UnixMilli()

	for _, coin := range cfg.Feed.DefaultSymbols {
		if ctx.Err() != nil {
			return
		}

		startTime := since
		cached, err := store.LoadCandles(coin, interval, since)
		if err != nil {
			log.Warning("Candle cache read failed for %s: %v", coin, err)
		} else if len(cached) > 0 {
			startTime = cached[len(cached)-1].OpenTime
		}

		fetched, err := client.CandleSnapshot(ctx, coin, interval, startTime)
		if err != nil {
			log.Warning("Candle fetch failed for %s: %v", coin, err)
			continue
		}
		if err := store.SaveCandles(fetched); err != nil {
			log.Warning("Candle save failed for %s: %v", coin, err)
			continue
		}
		log.Info("Warmed %d candles for %s", len(fetched), coin)
	}
}
