package telemetry

import (
	"time"

	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/route"
)

// PositionSample is one timestamped position report for the platform
type PositionSample struct {
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Source    string    `json:"source,omitempty"` // "feed" or "sim"
}

// Snapshot is the combined live picture handed to the API and the
// WebSocket feed
type Snapshot struct {
	RouteID         string          `json:"route_id,omitempty"`
	Position        *PositionSample `json:"position,omitempty"`
	SpeedKts        float64         `json:"speed_kts"`
	Progress        *route.Progress `json:"progress,omitempty"`
	Flight          flight.Status   `json:"flight"`
	SamplesIngested int64           `json:"samples_ingested"`
}

// Storage persists position samples. Implemented by the sqlite layer;
// the service degrades to in-memory-only operation when nil.
type Storage interface {
	SavePosition(routeID string, sample PositionSample) error
	GetRecentPositions(routeID string, limit int) ([]PositionSample, error)
}
