package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/airlinked/commtime/internal/telemetry"
	"github.com/airlinked/commtime/pkg/logger"
)

// PositionStorage persists position samples. Implements telemetry.Storage.
type PositionStorage struct {
	db           *sql.DB
	logger       *logger.Logger
	maxPositions int
}

// NewPositionStorage creates a position storage on the shared database.
// maxPositions caps how many samples a single read returns.
func NewPositionStorage(db *sql.DB, maxPositions int, log *logger.Logger) *PositionStorage {
	return &PositionStorage{
		db:           db,
		logger:       log.Named("position-storage"),
		maxPositions: maxPositions,
	}
}

// SavePosition appends one position sample
func (s *PositionStorage) SavePosition(routeID string, sample telemetry.PositionSample) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (route_id, lat, lon, source, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, routeID, sample.Lat, sample.Lon, sample.Source, sample.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// GetRecentPositions returns the newest samples for a route in
// chronological order
func (s *PositionStorage) GetRecentPositions(routeID string, limit int) ([]telemetry.PositionSample, error) {
	if limit <= 0 || limit > s.maxPositions {
		limit = s.maxPositions
	}

	rows, err := s.db.Query(`
		SELECT lat, lon, source, timestamp FROM positions
		WHERE route_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, routeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for route %s: %w", routeID, err)
	}
	defer rows.Close()

	var samples []telemetry.PositionSample
	for rows.Next() {
		var p telemetry.PositionSample
		if err := rows.Scan(&p.Lat, &p.Lon, &p.Source, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		samples = append(samples, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the index, oldest-first for callers
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}
