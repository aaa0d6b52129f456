package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"hypersync/src/helpers"
	"hypersync/src/interfaces"
	"hypersync/src/logger"
	"hypersync/src/models"
)

// -----------------------------------------------------------------------------
// BackendDB reads the hosted dashboard backend: agents, equity snapshots, and
// sentiment. The schema belongs to the backend, nothing is created here.
// -----------------------------------------------------------------------------

type BackendDB struct {
	Config *models.MConfig
	Logger *logger.Logger
	db     *sql.DB
}

var _ interfaces.IDatabase = (*BackendDB)(nil)

// -----------------------------------------------------------------------------

func NewBackendDB(cfg *models.MConfig, log *logger.Logger) *BackendDB {
	return &BackendDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// Initialize opens the connection pool and verifies connectivity.
func (b *BackendDB) Initialize() error {
	db, err := sql.Open("postgres", b.Config.Backend.ConnectionString)
	if err != nil {
		return &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to open backend connection",
			Cause:   err,
		}}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to ping backend",
			Cause:   err,
		}}
	}

	b.db = db
	b.Logger.Info("Backend database connected")
	return nil
}

// -----------------------------------------------------------------------------

func (b *BackendDB) ListAgents(ctx context.Context) ([]models.MAgent, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, name, address, initial_capital, created_at
		FROM agents
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to list agents",
			Cause:   err,
		}}
	}
	defer rows.Close()

	var agents []models.MAgent
	for rows.Next() {
		var a models.MAgent
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.InitialCapital, &a.CreatedAt); err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// -----------------------------------------------------------------------------

func (b *BackendDB) GetAgent(ctx context.Context, id string) (*models.MAgent, error) {
	var a models.MAgent
	err := b.db.QueryRowContext(ctx, `
		SELECT id, name, address, initial_capital, created_at
		FROM agents
		WHERE id = $1`, id).Scan(&a.ID, &a.Name, &a.Address, &a.InitialCapital, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to get agent",
			Cause:   err,
		}}
	}
	return &a, nil
}

// -----------------------------------------------------------------------------

func (b *BackendDB) ListAccountSnapshots(ctx context.Context, agentID string, since time.Time) ([]models.MSnapshot, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT agent_id, equity, created_at
		FROM account_snapshots
		WHERE agent_id = $1 AND created_at >= $2
		ORDER BY created_at ASC`, agentID, since)
	if err != nil {
		return nil, &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to list account snapshots",
			Cause:   err,
		}}
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

// BucketedSnapshots delegates downsampling to the backend's stored procedure
// so wide time ranges do not ship every raw row over the wire.
func (b *BackendDB) BucketedSnapshots(ctx context.Context, agentID string, bucketSeconds int) ([]models.MSnapshot, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT agent_id, equity, created_at FROM get_bucketed_snapshots($1, $2)`,
		agentID, bucketSeconds)
	if err != nil {
		return nil, &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to fetch bucketed snapshots",
			Cause:   err,
		}}
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

func scanSnapshots(rows *sql.Rows) ([]models.MSnapshot, error) {
	var snapshots []models.MSnapshot
	for rows.Next() {
		var s models.MSnapshot
		if err := rows.Scan(&s.AgentID, &s.Equity, &s.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// -----------------------------------------------------------------------------

func (b *BackendDB) ListSentiment(ctx context.Context, since time.Time) ([]models.MSentiment, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT score, created_at
		FROM sentiment_history
		WHERE created_at >= $1
		ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, &helpers.BackendError{SyncError: helpers.SyncError{
			Message: "failed to list sentiment",
			Cause:   err,
		}}
	}
	defer rows.Close()

	var out []models.MSentiment
	for rows.Next() {
		var s models.MSentiment
		if err := rows.Scan(&s.Score, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

// Close closes the database connection
func (b *BackendDB) Close() error {
	if b.db != nil {
		b.Logger.Info("Closing backend database connection")
		return b.db.Close()
	}
	return nil
}
