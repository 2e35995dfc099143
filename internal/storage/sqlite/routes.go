package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/pkg/logger"
)

// RouteStorage persists routes with their points as a JSON column
type RouteStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRouteStorage creates a route storage on the shared database
func NewRouteStorage(db *sql.DB, log *logger.Logger) *RouteStorage {
	return &RouteStorage{
		db:     db,
		logger: log.Named("route-storage"),
	}
}

// SaveRoute inserts or replaces a route
func (s *RouteStorage) SaveRoute(r *route.Route) error {
	points, err := json.Marshal(r.Points)
	if err != nil {
		return fmt.Errorf("failed to marshal points for route %s: %w", r.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO routes (id, name, points_json, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			points_json = excluded.points_json
	`, r.ID, r.Name, string(points), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save route %s: %w", r.ID, err)
	}
	return nil
}

// GetRoute loads a route by ID
func (s *RouteStorage) GetRoute(id string) (*route.Route, error) {
	var r route.Route
	var points string
	err := s.db.QueryRow(`SELECT id, name, points_json FROM routes WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &points)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("route %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(points), &r.Points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal points for route %s: %w", id, err)
	}
	return &r, nil
}

// ListRoutes returns all stored routes
func (s *RouteStorage) ListRoutes() ([]*route.Route, error) {
	rows, err := s.db.Query(`SELECT id, name, points_json FROM routes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var routes []*route.Route
	for rows.Next() {
		var r route.Route
		var points string
		if err := rows.Scan(&r.ID, &r.Name, &points); err != nil {
			return nil, fmt.Errorf("failed to scan route row: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &r.Points); err != nil {
			s.logger.Error("Skipping unreadable route",
				logger.String("route_id", r.ID),
				logger.Error(err))
			continue
		}
		routes = append(routes, &r)
	}
	return routes, rows.Err()
}
