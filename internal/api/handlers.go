package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/airlinked/commtime/internal/config"
	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/route"
	"github.com/airlinked/commtime/internal/simulation"
	"github.com/airlinked/commtime/internal/storage/sqlite"
	"github.com/airlinked/commtime/internal/telemetry"
	"github.com/airlinked/commtime/internal/timeline"
	"github.com/airlinked/commtime/internal/websocket"
	"github.com/airlinked/commtime/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	telemetryService  *telemetry.Service
	simulationService *simulation.Service
	flightState       *flight.StateManager
	builder           *timeline.Builder
	missionStorage    *sqlite.MissionStorage
	routeStorage      *sqlite.RouteStorage
	timelineStorage   *sqlite.TimelineStorage
	config            *config.Config
	logger            *logger.Logger
	wsServer          *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(
	telemetryService *telemetry.Service,
	simulationService *simulation.Service,
	flightState *flight.StateManager,
	builder *timeline.Builder,
	missionStorage *sqlite.MissionStorage,
	routeStorage *sqlite.RouteStorage,
	timelineStorage *sqlite.TimelineStorage,
	cfg *config.Config,
	log *logger.Logger,
	wsServer *websocket.Server,
) *Handler {
	return &Handler{
		telemetryService:  telemetryService,
		simulationService: simulationService,
		flightState:       flightState,
		builder:           builder,
		missionStorage:    missionStorage,
		routeStorage:      routeStorage,
		timelineStorage:   timelineStorage,
		config:            cfg,
		logger:            log.Named("api-handler"),
		wsServer:          wsServer,
	}
}

// Health returns server liveness and basic counters
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"time":       time.Now().UTC(),
		"ws_clients": h.wsServer.ClientCount(),
	})
}

// CreateMission stores a mission with its transport configs and computes
// the timeline for every leg
func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string                     `json:"id"`
		Name string                     `json:"name"`
		Legs []timeline.TransportConfig `json:"legs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Legs) == 0 {
		http.Error(w, "Mission requires at least one leg", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	mission := sqlite.Mission{ID: req.ID, Name: req.Name, CreatedAt: time.Now().UTC()}
	if err := h.missionStorage.SaveMission(mission); err != nil {
		h.logger.Error("Failed to save mission", logger.Error(err))
		http.Error(w, "Failed to save mission", http.StatusInternalServerError)
		return
	}
	for i := range req.Legs {
		req.Legs[i].MissionID = req.ID
		if err := h.missionStorage.SaveTransportConfig(req.Legs[i]); err != nil {
			h.logger.Error("Failed to save transport config",
				logger.String("leg_id", req.Legs[i].LegID),
				logger.Error(err))
			http.Error(w, "Failed to save transport config", http.StatusInternalServerError)
			return
		}
	}

	results := h.computeTimelines(r, req.Legs)
	h.logger.Info("Mission created",
		logger.String("mission_id", req.ID),
		logger.Int("legs", len(req.Legs)))

	WriteJSON(w, http.StatusCreated, map[string]any{
		"mission": mission,
		"results": results,
	})
}

// ListMissions returns all missions
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.missionStorage.ListMissions()
	if err != nil {
		h.logger.Error("Failed to list missions", logger.Error(err))
		http.Error(w, "Failed to list missions", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"missions": missions})
}

// GetMission returns one mission with its legs
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mission, err := h.missionStorage.GetMission(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, mission)
}

// RecomputeMission rebuilds the timeline for every leg of a mission
func (h *Handler) RecomputeMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mission, err := h.missionStorage.GetMission(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if len(mission.Legs) == 0 {
		http.Error(w, "Mission has no legs", http.StatusBadRequest)
		return
	}

	results := h.computeTimelines(r, mission.Legs)
	WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

// legResult is the per-leg outcome of a batch computation
type legResult struct {
	LegID         string `json:"leg_id"`
	ComputationID string `json:"computation_id,omitempty"`
	Segments      int    `json:"segments,omitempty"`
	Advisories    int    `json:"advisories,omitempty"`
	Error         string `json:"error,omitempty"`
}

// computeTimelines runs the worker pool over the legs, persists the
// successful timelines and announces them on the live feed. Failed legs
// are reported alongside, never instead.
func (h *Handler) computeTimelines(r *http.Request, legs []timeline.TransportConfig) []legResult {
	results := h.builder.BuildAll(r.Context(), legs, h.config.Timeline.Workers)

	out := make([]legResult, 0, len(results))
	for _, res := range results {
		lr := legResult{LegID: res.LegID}
		if res.Err != nil {
			lr.Error = res.Err.Error()
			out = append(out, lr)
			continue
		}

		lr.ComputationID = res.Timeline.ComputationID
		lr.Segments = len(res.Timeline.Segments)
		lr.Advisories = len(res.Timeline.Advisories)
		out = append(out, lr)

		if err := h.timelineStorage.SaveTimeline(res.Timeline); err != nil {
			h.logger.Error("Failed to persist timeline",
				logger.String("leg_id", res.LegID),
				logger.Error(err))
		}
		h.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeTimelineUpdate,
			Data: map[string]any{
				"leg_id":         res.LegID,
				"computation_id": res.Timeline.ComputationID,
			},
		})
		for _, adv := range res.Timeline.Advisories {
			if adv.Severity == timeline.SeverityInfo {
				continue
			}
			h.wsServer.Broadcast(&websocket.Message{
				Type: websocket.MessageTypeAdvisory,
				Data: map[string]any{
					"leg_id":   res.LegID,
					"advisory": adv,
				},
			})
		}
	}
	return out
}

// GetLegTimeline returns the latest computed timeline for a leg
func (h *Handler) GetLegTimeline(w http.ResponseWriter, r *http.Request) {
	legID := chi.URLParam(r, "legID")
	tl, err := h.timelineStorage.GetLatestTimeline(legID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, tl)
}

// CreateRoute validates and stores a route
func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var rt route.Route
	if err := json.NewDecoder(r.Body).Decode(&rt); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.Degenerate() {
		http.Error(w, "Route requires at least two points", http.StatusBadRequest)
		return
	}

	if err := h.routeStorage.SaveRoute(&rt); err != nil {
		h.logger.Error("Failed to save route", logger.Error(err))
		http.Error(w, "Failed to save route", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusCreated, rt)
}

// ListRoutes returns all stored routes
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routeStorage.ListRoutes()
	if err != nil {
		h.logger.Error("Failed to list routes", logger.Error(err))
		http.Error(w, "Failed to list routes", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

// GetRoute returns one route
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.routeStorage.GetRoute(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, rt)
}

// UpdateRouteTiming attaches a planned arrival timestamp to the route
// point nearest the given position, within the pass tolerance
func (h *Handler) UpdateRouteTiming(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat            float64   `json:"lat"`
		Lon            float64   `json:"lon"`
		PlannedArrival time.Time `json:"planned_arrival"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	rt, err := h.routeStorage.GetRoute(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	idx, ok := rt.AssignPlannedArrival(req.Lat, req.Lon, req.PlannedArrival, route.DefaultTimestampToleranceM)
	if !ok {
		http.Error(w, "No route point within tolerance of the given position", http.StatusUnprocessableEntity)
		return
	}
	if err := h.routeStorage.SaveRoute(rt); err != nil {
		h.logger.Error("Failed to save route timing", logger.Error(err))
		http.Error(w, "Failed to save route", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"waypoint_index": idx,
		"route":          rt,
	})
}

// ActivateRoute binds a stored route to the live telemetry path
func (h *Handler) ActivateRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.routeStorage.GetRoute(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := h.telemetryService.ActivateRoute(rt); err != nil {
		http.Error(w, fmt.Sprintf("Failed to activate route: %v", err), http.StatusBadRequest)
		return
	}

	simulating := false
	if h.config.Simulation.Enabled {
		if err := h.simulationService.Start(context.Background(), rt); err != nil {
			h.logger.Warn("Failed to start simulator for activated route", logger.Error(err))
		} else {
			simulating = true
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"active_route": rt.ID,
		"simulating":   simulating,
	})
}

// DeactivateRoute unbinds the active route and stops any simulation
func (h *Handler) DeactivateRoute(w http.ResponseWriter, r *http.Request) {
	h.simulationService.Stop()
	h.telemetryService.DeactivateRoute()
	WriteJSON(w, http.StatusOK, map[string]any{"active_route": nil})
}

// StartSimulation activates a route and flies it with the simulator
func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RouteID string `json:"route_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	rt, err := h.routeStorage.GetRoute(req.RouteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := h.telemetryService.ActivateRoute(rt); err != nil {
		http.Error(w, fmt.Sprintf("Failed to activate route: %v", err), http.StatusBadRequest)
		return
	}
	// The simulator outlives the request; it stops via /simulation/stop
	// or when the route's final waypoint is reached
	if err := h.simulationService.Start(context.Background(), rt); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start simulation: %v", err), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"simulating": rt.ID})
}

// StopSimulation halts the simulator
func (h *Handler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	h.simulationService.Stop()
	WriteJSON(w, http.StatusOK, map[string]any{"simulating": false})
}

// GetFlightStatus returns the combined live snapshot
func (h *Handler) GetFlightStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.telemetryService.Snapshot(time.Now().UTC()))
}

// flightCommand maps the manual flight commands onto the state machine
func (h *Handler) flightCommand(w http.ResponseWriter, apply func() error) {
	if err := apply(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, h.telemetryService.Snapshot(time.Now().UTC()))
}

// FlightDepart forces the departure transition
func (h *Handler) FlightDepart(w http.ResponseWriter, r *http.Request) {
	h.flightCommand(w, func() error { return h.flightState.Depart(time.Now().UTC()) })
}

// FlightArrive forces the arrival transition
func (h *Handler) FlightArrive(w http.ResponseWriter, r *http.Request) {
	h.flightCommand(w, func() error { return h.flightState.Arrive(time.Now().UTC()) })
}

// FlightReset returns the state machine to pre-departure after arrival
func (h *Handler) FlightReset(w http.ResponseWriter, r *http.Request) {
	h.flightCommand(w, func() error { return h.flightState.Reset() })
}

// IngestPosition accepts one position report
func (h *Handler) IngestPosition(w http.ResponseWriter, r *http.Request) {
	var sample telemetry.PositionSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}
	if sample.Source == "" {
		sample.Source = "feed"
	}

	if err := h.telemetryService.IngestPosition(sample); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// GetPositions returns recent persisted samples for the active route
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	samples, err := h.telemetryService.RecentPositions(limit)
	if err != nil {
		h.logger.Error("Failed to load positions", logger.Error(err))
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"positions": samples})
}

// GetETAToWaypoint returns the estimate to a route point
func (h *Handler) GetETAToWaypoint(w http.ResponseWriter, r *http.Request) {
	calc := h.telemetryService.Calculator()
	if calc == nil {
		http.Error(w, "No active route", http.StatusConflict)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid waypoint index", http.StatusBadRequest)
		return
	}

	snap := h.telemetryService.Snapshot(time.Now().UTC())
	if snap.Position == nil {
		http.Error(w, "No position reported yet", http.StatusConflict)
		return
	}

	est, err := calc.ETAToWaypoint(time.Now().UTC(), snap.Position.Lat, snap.Position.Lon, index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusOK, est)
}

// GetETAToLocation returns the estimate to an arbitrary coordinate
func (h *Handler) GetETAToLocation(w http.ResponseWriter, r *http.Request) {
	calc := h.telemetryService.Calculator()
	if calc == nil {
		http.Error(w, "No active route", http.StatusConflict)
		return
	}

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		http.Error(w, "lat and lon query parameters are required", http.StatusBadRequest)
		return
	}

	snap := h.telemetryService.Snapshot(time.Now().UTC())
	if snap.Position == nil {
		http.Error(w, "No position reported yet", http.StatusConflict)
		return
	}

	est, err := calc.ETAToLocation(time.Now().UTC(), snap.Position.Lat, snap.Position.Lon, lat, lon)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusOK, est)
}

// GetETAStats exposes the cache counters and the accuracy aggregate
func (h *Handler) GetETAStats(w http.ResponseWriter, r *http.Request) {
	calc := h.telemetryService.Calculator()
	if calc == nil {
		http.Error(w, "No active route", http.StatusConflict)
		return
	}

	hits, misses, size := calc.Cache().Stats()
	WriteJSON(w, http.StatusOK, map[string]any{
		"cache": map[string]any{
			"hits":   hits,
			"misses": misses,
			"size":   size,
		},
		"accuracy": map[string]any{
			"average_error_seconds": calc.Accuracy().AverageErrorSeconds(),
			"scored_waypoints":      calc.Accuracy().ScoredCount(),
		},
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
