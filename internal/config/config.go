package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
	Flight     FlightConfig     `toml:"flight"`     // Flight phase detection settings
	ETA        ETAConfig        `toml:"eta"`        // Arrival estimation settings
	Timeline   TimelineConfig   `toml:"timeline"`   // Timeline computation settings
	Telemetry  TelemetryConfig  `toml:"telemetry"`  // Position ingest and broadcast settings
	Simulation SimulationConfig `toml:"simulation"` // Platform simulator settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the dashboard from (e.g., "www")
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLiteBasePath    string `toml:"sqlite_base_path"`     // Base path for SQLite database files (actual filename is generated as commtime-YYYY-MM-DD.db)
	MaxPositionsInAPI int    `toml:"max_positions_in_api"` // Maximum number of position samples returned by the positions API
}

// FlightConfig contains flight phase detection thresholds
type FlightConfig struct {
	DepartureThresholdKts float64 `toml:"departure_threshold_kts"` // Smoothed speed above which the platform is considered departed (default: 40)
	ArrivalRadiusM        float64 `toml:"arrival_radius_m"`        // Distance to destination inside which arrival detection runs (default: 100)
	ArrivalHoldSecs       int     `toml:"arrival_hold_seconds"`    // How long the platform must stay inside the radius before arrival (default: 60)
}

// ETAConfig contains arrival estimation settings
type ETAConfig struct {
	CacheTTLSecs      int     `toml:"cache_ttl_seconds"`    // Estimate cache time-to-live (default: 5)
	MinCruiseSpeedKts float64 `toml:"min_cruise_speed_kts"` // Denominator floor for speed-based estimates (default: 0.5)
}

// TimelineConfig contains timeline computation settings
type TimelineConfig struct {
	Workers int `toml:"workers"` // Concurrent leg computations for batch recomputes (default: 4)
}

// TelemetryConfig contains position ingest and broadcast settings
type TelemetryConfig struct {
	SpeedWindowSecs     int     `toml:"speed_window_seconds"`   // Rolling window for speed smoothing (default: 120)
	MinDisplacementM    float64 `toml:"min_displacement_m"`     // GPS noise floor for speed samples (default: 10)
	WaypointPassRadiusM float64 `toml:"waypoint_pass_radius_m"` // Distance at which a waypoint counts as passed (default: 500)
	BroadcastRatePerSec float64 `toml:"broadcast_rate_per_sec"` // Status broadcasts per second over WebSocket (default: 2)
	BroadcastBurst      int     `toml:"broadcast_burst"`        // Burst allowance for the broadcast limiter (default: 5)
}

// SimulationConfig contains platform simulator settings
type SimulationConfig struct {
	Enabled            bool    `toml:"enabled"`              // Fly the active route with a simulated platform
	UpdateIntervalSecs int     `toml:"update_interval_secs"` // Seconds between simulated position reports (default: 5)
	SpeedKts           float64 `toml:"speed_kts"`            // Simulated ground speed in knots (default: 250)
}

// Load loads the configuration from the given path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	for _, port := range c.Server.AdditionalPorts {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid additional port: %d", port)
		}
		if port == c.Server.Port {
			return fmt.Errorf("additional port %d duplicates the primary port", port)
		}
	}

	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}
	if c.Storage.MaxPositionsInAPI <= 0 {
		c.Storage.MaxPositionsInAPI = 500
	}

	if err := c.validateFlight(); err != nil {
		return err
	}
	if err := c.validateETA(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return c.validateSimulation()
}

func (c *Config) validateFlight() error {
	if c.Flight.DepartureThresholdKts == 0 {
		c.Flight.DepartureThresholdKts = 40
	}
	if c.Flight.DepartureThresholdKts < 0 {
		return fmt.Errorf("departure_threshold_kts must be positive: %f", c.Flight.DepartureThresholdKts)
	}
	if c.Flight.ArrivalRadiusM == 0 {
		c.Flight.ArrivalRadiusM = 100
	}
	if c.Flight.ArrivalRadiusM < 0 {
		return fmt.Errorf("arrival_radius_m must be positive: %f", c.Flight.ArrivalRadiusM)
	}
	if c.Flight.ArrivalHoldSecs == 0 {
		c.Flight.ArrivalHoldSecs = 60
	}
	if c.Flight.ArrivalHoldSecs < 0 {
		return fmt.Errorf("arrival_hold_seconds must be positive: %d", c.Flight.ArrivalHoldSecs)
	}
	return nil
}

func (c *Config) validateETA() error {
	if c.ETA.CacheTTLSecs == 0 {
		c.ETA.CacheTTLSecs = 5
	}
	if c.ETA.CacheTTLSecs < 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive: %d", c.ETA.CacheTTLSecs)
	}
	if c.ETA.MinCruiseSpeedKts == 0 {
		c.ETA.MinCruiseSpeedKts = 0.5
	}
	if c.ETA.MinCruiseSpeedKts < 0 {
		return fmt.Errorf("min_cruise_speed_kts must be positive: %f", c.ETA.MinCruiseSpeedKts)
	}
	return nil
}

func (c *Config) validateTimeline() error {
	if c.Timeline.Workers == 0 {
		c.Timeline.Workers = 4
	}
	if c.Timeline.Workers < 0 {
		return fmt.Errorf("timeline workers must be positive: %d", c.Timeline.Workers)
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.SpeedWindowSecs == 0 {
		c.Telemetry.SpeedWindowSecs = 120
	}
	if c.Telemetry.SpeedWindowSecs < 0 {
		return fmt.Errorf("speed_window_seconds must be positive: %d", c.Telemetry.SpeedWindowSecs)
	}
	if c.Telemetry.MinDisplacementM == 0 {
		c.Telemetry.MinDisplacementM = 10
	}
	if c.Telemetry.MinDisplacementM < 0 {
		return fmt.Errorf("min_displacement_m must be positive: %f", c.Telemetry.MinDisplacementM)
	}
	if c.Telemetry.WaypointPassRadiusM == 0 {
		c.Telemetry.WaypointPassRadiusM = 500
	}
	if c.Telemetry.WaypointPassRadiusM < 0 {
		return fmt.Errorf("waypoint_pass_radius_m must be positive: %f", c.Telemetry.WaypointPassRadiusM)
	}
	if c.Telemetry.BroadcastRatePerSec == 0 {
		c.Telemetry.BroadcastRatePerSec = 2
	}
	if c.Telemetry.BroadcastRatePerSec < 0 {
		return fmt.Errorf("broadcast_rate_per_sec must be positive: %f", c.Telemetry.BroadcastRatePerSec)
	}
	if c.Telemetry.BroadcastBurst == 0 {
		c.Telemetry.BroadcastBurst = 5
	}
	if c.Telemetry.BroadcastBurst < 0 {
		return fmt.Errorf("broadcast_burst must be positive: %d", c.Telemetry.BroadcastBurst)
	}
	return nil
}

func (c *Config) validateSimulation() error {
	if c.Simulation.UpdateIntervalSecs == 0 {
		c.Simulation.UpdateIntervalSecs = 5
	}
	if c.Simulation.UpdateIntervalSecs < 0 {
		return fmt.Errorf("update_interval_secs must be positive: %d", c.Simulation.UpdateIntervalSecs)
	}
	if c.Simulation.SpeedKts == 0 {
		c.Simulation.SpeedKts = 250
	}
	if c.Simulation.SpeedKts < 0 {
		return fmt.Errorf("simulation speed_kts must be positive: %f", c.Simulation.SpeedKts)
	}
	return nil
}
