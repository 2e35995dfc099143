package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/airlinked/commtime/internal/api"
	"github.com/airlinked/commtime/internal/config"
	"github.com/airlinked/commtime/internal/eta"
	"github.com/airlinked/commtime/internal/flight"
	"github.com/airlinked/commtime/internal/simulation"
	"github.com/airlinked/commtime/internal/storage/sqlite"
	"github.com/airlinked/commtime/internal/telemetry"
	"github.com/airlinked/commtime/internal/timeline"
	"github.com/airlinked/commtime/internal/websocket"
	"github.com/airlinked/commtime/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting CommTime server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Daily database filename
	today := time.Now().Format("2006-01-02")
	dbFilename := fmt.Sprintf("commtime-%s.db", today)
	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, dbFilename)

	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}

	sqliteStorage, err := sqlite.NewStorage(dbPath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer sqliteStorage.Close()
	log.Info("Using daily database", logger.String("path", dbPath))

	missionStorage := sqlite.NewMissionStorage(sqliteStorage.GetDB(), log)
	routeStorage := sqlite.NewRouteStorage(sqliteStorage.GetDB(), log)
	timelineStorage := sqlite.NewTimelineStorage(sqliteStorage.GetDB(), log)
	positionStorage := sqlite.NewPositionStorage(sqliteStorage.GetDB(), cfg.Storage.MaxPositionsInAPI, log)

	// Create WebSocket server
	wsServer := websocket.NewServer(cfg.Telemetry.BroadcastRatePerSec, cfg.Telemetry.BroadcastBurst, log)
	go wsServer.Run()

	// Flight state machine and estimation core
	flightState := flight.NewStateManager(flight.Config{
		DepartureThresholdKts: cfg.Flight.DepartureThresholdKts,
		ArrivalRadiusM:        cfg.Flight.ArrivalRadiusM,
		ArrivalHold:           time.Duration(cfg.Flight.ArrivalHoldSecs) * time.Second,
	}, log)
	etaCache := eta.NewCache(time.Duration(cfg.ETA.CacheTTLSecs) * time.Second)
	accuracy := eta.NewAccuracyTracker()

	// Telemetry service ties position reports to speed, progress, phase
	// detection, persistence and the live feed
	telemetryService := telemetry.NewService(
		telemetry.Config{
			SpeedWindow:         time.Duration(cfg.Telemetry.SpeedWindowSecs) * time.Second,
			MinDisplacementM:    cfg.Telemetry.MinDisplacementM,
			WaypointPassRadiusM: cfg.Telemetry.WaypointPassRadiusM,
		},
		flightState,
		etaCache,
		accuracy,
		cfg.ETA.MinCruiseSpeedKts,
		positionStorage,
		wsServer,
		log,
	)

	// Create simulation service
	simulationService := simulation.NewService(
		time.Duration(cfg.Simulation.UpdateIntervalSecs)*time.Second,
		cfg.Simulation.SpeedKts,
		telemetryService,
		log,
	)

	// Timeline builder for mission comm availability
	builder := timeline.NewBuilder(log)

	// Create API router
	handler := api.NewHandler(
		telemetryService,
		simulationService,
		flightState,
		builder,
		missionStorage,
		routeStorage,
		timelineStorage,
		cfg,
		log,
		wsServer,
	)
	router := api.NewRouter(handler, wsServer, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	// Start a server for each configured port
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping simulation service...")
	simulationService.Stop()
	log.Info("Simulation service stopped.")

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}
