package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/airlinked/commtime/internal/config"
	"github.com/airlinked/commtime/internal/websocket"
	"github.com/airlinked/commtime/pkg/logger"
)

// Router wraps the chi router with the server configuration
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates the API router
func NewRouter(handler *Handler, wsServer *websocket.Server, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:  handler,
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("api-router"),
	}
}

// Routes builds the full route tree: REST API under /api, the live feed
// under /api/ws and the dashboard at the root
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware(rt.config.Server.CORSAllowedOrigins))

	h := rt.handler
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/missions", func(r chi.Router) {
			r.Post("/", h.CreateMission)
			r.Get("/", h.ListMissions)
			r.Get("/{id}", h.GetMission)
			r.Post("/{id}/recompute", h.RecomputeMission)
		})
		r.Get("/legs/{legID}/timeline", h.GetLegTimeline)

		r.Route("/routes", func(r chi.Router) {
			r.Post("/", h.CreateRoute)
			r.Get("/", h.ListRoutes)
			r.Get("/{id}", h.GetRoute)
			r.Post("/{id}/timing", h.UpdateRouteTiming)
			r.Post("/{id}/activate", h.ActivateRoute)
			r.Post("/deactivate", h.DeactivateRoute)
		})

		r.Route("/flight", func(r chi.Router) {
			r.Get("/status", h.GetFlightStatus)
			r.Post("/depart", h.FlightDepart)
			r.Post("/arrive", h.FlightArrive)
			r.Post("/reset", h.FlightReset)
		})

		r.Route("/eta", func(r chi.Router) {
			r.Get("/waypoint/{index}", h.GetETAToWaypoint)
			r.Get("/location", h.GetETAToLocation)
			r.Get("/stats", h.GetETAStats)
		})

		r.Route("/positions", func(r chi.Router) {
			r.Post("/", h.IngestPosition)
			r.Get("/", h.GetPositions)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/start", h.StartSimulation)
			r.Post("/stop", h.StopSimulation)
		})

		r.Get("/ws", rt.wsServer.HandleConnection)
	})

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// corsMiddleware applies the configured allowed origins. An empty list
// disables cross-origin access entirely.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
