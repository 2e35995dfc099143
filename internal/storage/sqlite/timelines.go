package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/airlinked/commtime/internal/timeline"
	"github.com/airlinked/commtime/pkg/logger"
)

// TimelineStorage persists computed timeline snapshots so a restarted
// server can serve the last known timeline before the first recompute
type TimelineStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTimelineStorage creates a timeline storage on the shared database
func NewTimelineStorage(db *sql.DB, log *logger.Logger) *TimelineStorage {
	return &TimelineStorage{
		db:     db,
		logger: log.Named("timeline-storage"),
	}
}

// SaveTimeline stores one computation pass
func (s *TimelineStorage) SaveTimeline(tl *timeline.MissionTimeline) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline %s: %w", tl.ComputationID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO timelines (computation_id, leg_id, mission_id, timeline_json, generated_at)
		VALUES (?, ?, ?, ?, ?)
	`, tl.ComputationID, tl.LegID, tl.MissionID, string(data), tl.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to save timeline %s: %w", tl.ComputationID, err)
	}
	return nil
}

// GetLatestTimeline returns the most recent computation for a leg
func (s *TimelineStorage) GetLatestTimeline(legID string) (*timeline.MissionTimeline, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT timeline_json FROM timelines
		WHERE leg_id = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`, legID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no timeline computed for leg %s", legID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline for leg %s: %w", legID, err)
	}

	var tl timeline.MissionTimeline
	if err := json.Unmarshal([]byte(data), &tl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline for leg %s: %w", legID, err)
	}
	return &tl, nil
}

// PruneTimelines keeps only the newest keep computations per leg
func (s *TimelineStorage) PruneTimelines(legID string, keep int) error {
	if keep <= 0 {
		keep = 1
	}
	_, err := s.db.Exec(`
		DELETE FROM timelines WHERE leg_id = ? AND computation_id NOT IN (
			SELECT computation_id FROM timelines
			WHERE leg_id = ?
			ORDER BY generated_at DESC
			LIMIT ?
		)
	`, legID, legID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune timelines for leg %s: %w", legID, err)
	}
	return nil
}
