package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airlinked/commtime/internal/timeline"
	"github.com/airlinked/commtime/pkg/logger"
)

// Mission is a stored mission with its transport configs attached on read
type Mission struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	CreatedAt time.Time                  `json:"created_at"`
	Legs      []timeline.TransportConfig `json:"legs,omitempty"`
}

// MissionStorage persists missions and their per-leg transport configs
type MissionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewMissionStorage creates a mission storage on the shared database
func NewMissionStorage(db *sql.DB, log *logger.Logger) *MissionStorage {
	return &MissionStorage{
		db:     db,
		logger: log.Named("mission-storage"),
	}
}

// SaveMission inserts or replaces a mission record
func (s *MissionStorage) SaveMission(m Mission) error {
	_, err := s.db.Exec(`
		INSERT INTO missions (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, m.ID, m.Name, m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save mission %s: %w", m.ID, err)
	}
	return nil
}

// SaveTransportConfig stores one leg's transport config as JSON
func (s *MissionStorage) SaveTransportConfig(cfg timeline.TransportConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal transport config for leg %s: %w", cfg.LegID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO transport_configs (leg_id, mission_id, config_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(leg_id) DO UPDATE SET
			mission_id = excluded.mission_id,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, cfg.LegID, cfg.MissionID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save transport config for leg %s: %w", cfg.LegID, err)
	}
	return nil
}

// GetTransportConfig loads one leg's transport config
func (s *MissionStorage) GetTransportConfig(legID string) (timeline.TransportConfig, error) {
	var data string
	err := s.db.QueryRow(`SELECT config_json FROM transport_configs WHERE leg_id = ?`, legID).Scan(&data)
	if err == sql.ErrNoRows {
		return timeline.TransportConfig{}, fmt.Errorf("transport config for leg %s not found", legID)
	}
	if err != nil {
		return timeline.TransportConfig{}, fmt.Errorf("failed to query transport config for leg %s: %w", legID, err)
	}

	var cfg timeline.TransportConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return timeline.TransportConfig{}, fmt.Errorf("failed to unmarshal transport config for leg %s: %w", legID, err)
	}
	return cfg, nil
}

// GetMission loads a mission with its transport configs
func (s *MissionStorage) GetMission(id string) (Mission, error) {
	var m Mission
	err := s.db.QueryRow(`SELECT id, name, created_at FROM missions WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return Mission{}, fmt.Errorf("mission %s not found", id)
	}
	if err != nil {
		return Mission{}, fmt.Errorf("failed to query mission %s: %w", id, err)
	}

	rows, err := s.db.Query(`SELECT config_json FROM transport_configs WHERE mission_id = ? ORDER BY leg_id`, id)
	if err != nil {
		return Mission{}, fmt.Errorf("failed to query legs for mission %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return Mission{}, fmt.Errorf("failed to scan leg row: %w", err)
		}
		var cfg timeline.TransportConfig
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			s.logger.Error("Skipping unreadable transport config",
				logger.String("mission_id", id),
				logger.Error(err))
			continue
		}
		m.Legs = append(m.Legs, cfg)
	}
	return m, rows.Err()
}

// ListMissions returns all missions without their legs
func (s *MissionStorage) ListMissions() ([]Mission, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM missions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []Mission
	for rows.Next() {
		var m Mission
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mission row: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}
