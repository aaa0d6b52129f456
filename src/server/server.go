package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hypersync/src/analysis"
	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// SyncServer
// -----------------------------------------------------------------------------

type SyncServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	Feed    interfaces.IPriceFeed
	Backend interfaces.IDatabase
	Candles interfaces.ICandleStore

	// Resubscribe swaps the tracked symbol set. Wired by the composition root.
	Resubscribe func(symbols []string) error

	// Equity returns the sampled equity curve. Wired by the composition root.
	Equity func() []models.MEquityPoint

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MLatestData
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestState *models.MLatestData
	stateMutex  sync.RWMutex
}

var _ interfaces.IDataExchanger = (*SyncServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewSyncServer(cfg *models.MConfig, log *logger.Logger, feed interfaces.IPriceFeed, backend interfaces.IDatabase, candles interfaces.ICandleStore) *SyncServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &SyncServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.Default(),
		Feed:    feed,
		Backend: backend,
		Candles: candles,
		clients: make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		broadcast:  make(chan *models.MLatestData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestState: &models.MLatestData{
			Type:    "INITIAL",
			Tickers: make(map[string]models.MTicker),
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *SyncServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/state", s.getState)
	s.engine.GET("/api/positions", s.getPositions)
	s.engine.GET("/api/chart/agents", s.getAgentChart)
	s.engine.GET("/api/chart/price", s.getPriceChart)
	s.engine.GET("/api/account/equity", s.getEquity)

	// Control endpoints
	s.engine.POST("/api/control/refresh", s.postRefresh)
	s.engine.GET("/api/control/symbols", s.getSymbols)
	s.engine.POST("/api/control/symbols", s.postSymbols)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *SyncServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *SyncServer) Stop() error {
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *SyncServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":         "ok",
		"connections":    connections,
		"latest_update":  timestamp,
		"feed_listeners": s.Feed.ListenerCount(),
	})
}

// -----------------------------------------------------------------------------

func (s *SyncServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"timeframes":      s.Config.Timeframes,
		"default_symbols": s.Config.Feed.DefaultSymbols,
	})
}

// -----------------------------------------------------------------------------

func (s *SyncServer) getState(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	c.JSON(200, s.latestState)
}

// -----------------------------------------------------------------------------

func (s *SyncServer) getPositions(c *gin.Context) {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	if s.latestState.Account == nil {
		c.JSON(200, gin.H{"positions": []models.MPosition{}})
		return
	}
	c.JSON(200, gin.H{
		"positions":  s.latestState.Account.Positions,
		"updated_at": s.latestState.Account.UpdatedAt,
	})
}

// -----------------------------------------------------------------------------

// getAgentChart builds one percent-change line per agent on a shared [0,1]
// time axis. ?hours bounds the window, ?bucket=seconds requests server-side
// downsampling, ?sentiment=1 folds sentiment timestamps into the axis.
func (s *SyncServer) getAgentChart(c *gin.Context) {
	if s.Backend == nil {
		c.JSON(501, gin.H{"error": "no backend configured"})
		return
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 {
		hours = 24
	}
	bucket, _ := strconv.Atoi(c.DefaultQuery("bucket", "0"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	agents, err := s.Backend.ListAgents(ctx)
	if err != nil {
		s.Logger.Error("Failed to list agents: %v", err)
		c.JSON(502, gin.H{"error": "backend unavailable"})
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	snapshots := make(map[string][]models.MSample, len(agents))
	for _, agent := range agents {
		var rows []models.MSnapshot
		if bucket > 0 {
			rows, err = s.Backend.BucketedSnapshots(ctx, agent.ID, bucket)
		} else {
			rows, err = s.Backend.ListAccountSnapshots(ctx, agent.ID, since)
		}
		if err != nil {
			s.Logger.Error("Failed to load snapshots for agent %s: %v", agent.ID, err)
			c.JSON(502, gin.H{"error": "backend unavailable"})
			return
		}
		snapshots[agent.ID] = analysis.SnapshotSamples(rows)
	}

	var extra [][]models.MSample
	if c.Query("sentiment") == "1" {
		rows, err := s.Backend.ListSentiment(ctx, since)
		if err != nil {
			s.Logger.Warning("Sentiment unavailable, axis excludes it: %v", err)
		} else {
			extra = append(extra, analysis.SentimentSamples(rows))
		}
	}

	lines := analysis.BuildAgentLines(agents, snapshots, extra...)
	c.JSON(200, gin.H{"lines": lines})
}

// -----------------------------------------------------------------------------

// getPriceChart serves cached OHLC close prices as a normalized chart line.
func (s *SyncServer) getPriceChart(c *gin.Context) {
	coin := strings.ToUpper(strings.TrimSpace(c.Query("coin")))
	if coin == "" {
		c.JSON(400, gin.H{"error": "coin is required"})
		return
	}
	interval := c.DefaultQuery("interval", "1h")
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 {
		hours = 24
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	candles, err := s.Candles.LoadCandles(coin, interval, since)
	if err != nil {
		s.Logger.Error("Failed to load candles for %s: %v", coin, err)
		c.JSON(500, gin.H{"error": "candle cache unavailable"})
		return
	}

	samples := analysis.CandleSamples(candles)
	normalizer := analysis.NewNormalizer(samples)
	points := normalizer.NormalizeSeries(samples)

	c.JSON(200, gin.H{
		"coin":     coin,
		"interval": interval,
		"points":   points,
	})
}

// -----------------------------------------------------------------------------

// getEquity serves the in-process equity curve on an absolute time axis.
func (s *SyncServer) getEquity(c *gin.Context) {
	if s.Equity == nil {
		c.JSON(501, gin.H{"error": "equity history not wired"})
		return
	}

	history := s.Equity()
	points := make([]models.MTimePoint, 0, len(history))
	for _, p := range history {
		points = append(points, models.MTimePoint{Timestamp: p.Timestamp, Value: p.Value})
	}
	c.JSON(200, gin.H{"points": points})
}

// -----------------------------------------------------------------------------

func (s *SyncServer) postRefresh(c *gin.Context) {
	if err := s.Feed.Refresh(); err != nil {
		c.JSON(409, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "refreshing"})
}

// -----------------------------------------------------------------------------

func (s *SyncServer) getSymbols(c *gin.Context) {
	tickers := s.Feed.Tickers()
	symbols := make([]string, 0, len(tickers))
	for sym := range tickers {
		symbols = append(symbols, sym)
	}
	c.JSON(200, gin.H{"symbols": symbols})
}

// -----------------------------------------------------------------------------

func (s *SyncServer) postSymbols(c *gin.Context) {
	var body struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "invalid body"})
		return
	}
	if s.Resubscribe == nil {
		c.JSON(501, gin.H{"error": "symbol control not wired"})
		return
	}
	if err := s.Resubscribe(body.Symbols); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ok", "symbols": body.Symbols})
}
