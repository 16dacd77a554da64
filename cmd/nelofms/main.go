// NeloFMS - Fleet Telemetry Core
//
// This is the main entry point for the NeloFMS telemetry core. It ingests
// per-unit location messages from the MQTT broker, keeps a live enriched
// cache per tracking unit, writes readings through to InfluxDB and the
// fleet registry, and serves the REST/WebSocket API used by the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/samuelsono/nelo-fms/migrations"

	"github.com/samuelsono/nelo-fms/internal/api"
	"github.com/samuelsono/nelo-fms/internal/fanout"
	"github.com/samuelsono/nelo-fms/internal/fleet"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/config"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/database"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/influxdb"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/logging"
	"github.com/samuelsono/nelo-fms/internal/infrastructure/mqtt"
	"github.com/samuelsono/nelo-fms/internal/ingest"
	"github.com/samuelsono/nelo-fms/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Secrets (broker credentials, Influx token) may come from a .env file
	// in development; missing file is fine.
	//nolint:errcheck // optional file
	godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting NeloFMS",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open the fleet registry database
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	fleetRepo := fleet.NewSQLiteRepository(db.DB)

	// Connect to InfluxDB (optional). Without it, history and event
	// queries are served from the live cache only.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Live telemetry cache and query facade
	cache := telemetry.NewCache(cfg.Telemetry.MaxRecords)
	var store telemetry.Store
	if influxClient != nil {
		store = influxClient
	}
	facade := telemetry.NewFacade(cache, store)
	facade.SetLogger(log)

	// Fan-out hub for WebSocket subscribers
	hub := fanout.NewHub()
	hub.SetLogger(log)
	defer hub.Close()

	// Ingestion pipeline: broker -> decode -> cache -> hub -> sinks
	coordinator := ingest.NewCoordinator(cfg.MQTT, cache, hub, log)

	if influxClient != nil {
		coordinator.AddSink("influxdb", func(_ context.Context, r *telemetry.Reading) error {
			influxClient.WriteReading(r)
			return nil
		}, cfg.Telemetry.SinkWorkers, cfg.Telemetry.SinkQueueSize)
	}

	updater := fleet.NewLocationUpdater(fleetRepo)
	updater.SetLogger(log)
	coordinator.AddSink("fleet-registry", updater.Apply,
		cfg.Telemetry.SinkWorkers, cfg.Telemetry.SinkQueueSize)

	if err := coordinator.Start(); err != nil {
		return fmt.Errorf("starting ingestion: %w", err)
	}
	defer coordinator.Stop()

	// The test-broadcast endpoint publishes over its own broker
	// connection, kept separate from the ingestion client so diagnostics
	// never contend with the data subscription.
	var publisher api.Publisher
	if cfg.MQTT.Enabled && mqtt.CredentialsPresent(cfg.MQTT) {
		if pubClient, pubErr := mqtt.Connect(cfg.MQTT); pubErr != nil {
			log.Warn("publisher connection failed, test-broadcast disabled", "error", pubErr)
		} else {
			defer func() {
				if closeErr := pubClient.Close(); closeErr != nil {
					log.Error("error closing publisher", "error", closeErr)
				}
			}()
			publisher = pubClient
		}
	}

	// HTTP API and WebSocket server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Telemetry: facade,
		Fleet:     fleetRepo,
		Hub:       hub,
		Ingest:    coordinator,
		Publisher: publisher,
		Version:   version,
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

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Publisher and ingestion
	// 3. Fan-out hub
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("NeloFMS stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NELOFMS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NELOFMS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections are healthy.
// The broker connection is checked by the coordinator during Start.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
