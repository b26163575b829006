// ir-relay - IR and hub command relay
//
// This is the main entry point for the ir-relay service. It exposes a
// small REST surface for the household's physical devices and forwards
// operations to the home-automation hub and the infrared emitter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/ir-relay/internal/api"
	"github.com/nerrad567/ir-relay/internal/audit"
	"github.com/nerrad567/ir-relay/internal/device"
	"github.com/nerrad567/ir-relay/internal/emitter"
	"github.com/nerrad567/ir-relay/internal/hub"
	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
	"github.com/nerrad567/ir-relay/internal/infrastructure/database"
	"github.com/nerrad567/ir-relay/internal/infrastructure/logging"
	"github.com/nerrad567/ir-relay/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ir-relay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the command log
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional event publishing)
	var events api.EventPublisher
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			// The relay works without the broker; command history still
			// lands in the audit log.
			log.Warn("MQTT unavailable, continuing without event publishing", "error", err)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
			events = mqttClient
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Build the hub client. No connection is attempted here; the first
	// authenticated request establishes the session.
	hubClient := hub.New(cfg.Hub, log)
	log.Info("hub client ready", "base_url", cfg.Hub.BaseURL)

	// Build the emitter client and repeater
	emitterClient := emitter.NewClient(cfg.Emitter)
	repeater := emitter.NewRepeater(emitterClient, cfg.Emitter, log)
	log.Info("emitter client ready",
		"host", cfg.Emitter.Host,
		"port", cfg.Emitter.Port,
		"max_repeat", cfg.Emitter.MaxRepeat,
		"pace_ms", cfg.Emitter.PaceInterval,
	)

	// Device registry with live hub discovery
	registry := device.NewRegistry(hubClient, log)

	// Start the API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Hub:      hubClient,
		Repeater: repeater,
		Audit:    auditRepo,
		Events:   events,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if connected)
	// 3. Database

	log.Info("ir-relay stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IRRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IRRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the core components are up.
//
// The hub and emitter are deliberately excluded: both are allowed to
// be down at startup, and failures surface per-request instead.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
