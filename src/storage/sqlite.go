package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (CGO-free)

	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// CandleCache keeps fetched OHLC history in a local SQLite file so restarts
// and chart reloads do not refetch the full candleSnapshot window.
// -----------------------------------------------------------------------------

type CandleCache struct {
	Config *models.MConfig
	Logger *logger.Logger
	db     *sql.DB
}

var _ interfaces.ICandleStore = (*CandleCache)(nil)

// -----------------------------------------------------------------------------

func NewCandleCache(cfg *models.MConfig, log *logger.Logger) *CandleCache {
	return &CandleCache{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Initialize opens the database and creates the schema if needed.
func (c *CandleCache) Initialize() error {
	db, err := sql.Open("sqlite", c.Config.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open candle cache: %w", err)
	}

	// Single writer; WAL keeps readers unblocked during inserts.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		coin       TEXT NOT NULL,
		interval   TEXT NOT NULL,
		open_time  INTEGER NOT NULL,
		close_time INTEGER NOT NULL,
		open       REAL NOT NULL,
		high       REAL NOT NULL,
		low        REAL NOT NULL,
		close      REAL NOT NULL,
		volume     REAL NOT NULL,
		PRIMARY KEY (coin, interval, open_time)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_close_time ON candles(close_time);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create candle schema: %w", err)
	}

	c.db = db
	c.Logger.Info("Candle cache ready at %s", c.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

// SaveCandles upserts a batch inside one transaction.
func (c *CandleCache) SaveCandles(candles []models.MCandle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles (coin, interval, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(coin, interval, open_time) DO UPDATE SET
			close_time = excluded.close_time,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, cd := range candles {
		if _, err := stmt.Exec(cd.Coin, cd.Interval, cd.OpenTime, cd.CloseTime,
			cd.Open, cd.High, cd.Low, cd.Close, cd.Volume); err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit candles: %w", err)
	}

	c.Logger.Debug("Saved %d candles", len(candles))
	return nil
}

// -----------------------------------------------------------------------------

// LoadCandles returns cached candles with open_time >= since, oldest first.
func (c *CandleCache) LoadCandles(coin, interval string, since int64) ([]models.MCandle, error) {
	rows, err := c.db.Query(`
		SELECT coin, interval, open_time, close_time, open, high, low, close, volume
		FROM candles
		WHERE coin = ? AND interval = ? AND open_time >= ?
		ORDER BY open_time ASC`, coin, interval, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles: %w", err)
	}
	defer rows.Close()

	var out []models.MCandle
	for rows.Next() {
		var cd models.MCandle
		if err := rows.Scan(&cd.Coin, &cd.Interval, &cd.OpenTime, &cd.CloseTime,
			&cd.Open, &cd.High, &cd.Low, &cd.Close, &cd.Volume); err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// CleanupOldData drops candles past the retention window.
func (c *CandleCache) CleanupOldData() error {
	cutoff := time.Now().AddDate(0, 0, -c.Config.Storage.RetentionDays).UnixMilli()

	result, err := c.db.Exec(`DELETE FROM candles WHERE close_time < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up candles: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		c.Logger.Info("Removed %d expired candles", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close closes the database connection
func (c *CandleCache) Close() error {
	if c.db != nil {
		c.Logger.Info("Closing candle cache")
		return c.db.Close()
	}
	return nil
}
