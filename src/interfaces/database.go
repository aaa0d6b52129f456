package interfaces

import (
	"context"
	"time"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines read access to the hosted backend (agents, snapshots,
// sentiment). The schema is owned by the backend; this layer only queries it.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// Initialize opens and pings the connection.
	Initialize() error

	// -----------------------------------------------------------------------------

	ListAgents(ctx context.Context) ([]models.MAgent, error)

	// -----------------------------------------------------------------------------

	GetAgent(ctx context.Context, id string) (*models.MAgent, error)

	// -----------------------------------------------------------------------------

	// ListAccountSnapshots returns equity samples for one agent since a cutoff.
	ListAccountSnapshots(ctx context.Context, agentID string, since time.Time) ([]models.MSnapshot, error)

	// -----------------------------------------------------------------------------

	// BucketedSnapshots calls the backend's bucketed-aggregation procedure.
	BucketedSnapshots(ctx context.Context, agentID string, bucketSeconds int) ([]models.MSnapshot, error)

	// -----------------------------------------------------------------------------

	ListSentiment(ctx context.Context, since time.Time) ([]models.MSentiment, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------
// ICandleStore is the local candle cache between candleSnapshot fetches.
// -----------------------------------------------------------------------------

type ICandleStore interface {

	// Initialize sets up the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	SaveCandles(candles []models.MCandle) error

	// -----------------------------------------------------------------------------

	// LoadCandles returns cached candles with open_time >= since (millis).
	LoadCandles(coin, interval string, since int64) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes candles older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	Close() error
}
