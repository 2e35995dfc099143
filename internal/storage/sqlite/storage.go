package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/airlinked/commtime/pkg/logger"
	_ "modernc.org/sqlite"
)

// Storage is the shared SQLite handle for all persistence layers
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStorage opens the database, applies pragmas and initializes the
// schema
func NewStorage(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *Storage) GetDB() *sql.DB {
	return s.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS missions (
			id TEXT PRIMARY KEY,
			name TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create missions table: %w", err)
	}

	// Event lists are stored as the JSON serialization of the transport
	// config; the builder is the only consumer and always reads the
	// whole document
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transport_configs (
			leg_id TEXT PRIMARY KEY,
			mission_id TEXT NOT NULL,
			config_json TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (mission_id) REFERENCES missions(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transport_configs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			name TEXT,
			points_json TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create routes table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			route_id TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			source TEXT,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS timelines (
			computation_id TEXT PRIMARY KEY,
			leg_id TEXT NOT NULL,
			mission_id TEXT NOT NULL,
			timeline_json TEXT NOT NULL,
			generated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create timelines table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_positions_route_timestamp ON positions(route_id, timestamp DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create index on positions.route_timestamp: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_timelines_leg_generated ON timelines(leg_id, generated_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create index on timelines.leg_generated: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transport_configs_mission ON transport_configs(mission_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on transport_configs.mission_id: %w", err)
	}

	return nil
}
