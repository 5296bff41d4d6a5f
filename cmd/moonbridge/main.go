// Moonbridge - Moonraker to MQTT / Home Assistant bridge
//
// This is the main entry point for the Moonbridge service. Moonbridge
// connects to a Klipper 3D printer through the Moonraker API and:
//   - Publishes printer state to MQTT with Home Assistant discovery
//   - Records state history and print jobs in SQLite
//   - Streams telemetry to InfluxDB (optional)
//   - Serves a REST/WebSocket API for dashboards and tooling
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/moonbridge/moonbridge/migrations"

	"github.com/moonbridge/moonbridge/internal/api"
	"github.com/moonbridge/moonbridge/internal/bridge"
	"github.com/moonbridge/moonbridge/internal/camera"
	"github.com/moonbridge/moonbridge/internal/entity"
	"github.com/moonbridge/moonbridge/internal/infrastructure/config"
	"github.com/moonbridge/moonbridge/internal/infrastructure/database"
	"github.com/moonbridge/moonbridge/internal/infrastructure/influxdb"
	"github.com/moonbridge/moonbridge/internal/infrastructure/logging"
	"github.com/moonbridge/moonbridge/internal/infrastructure/mqtt"
	"github.com/moonbridge/moonbridge/internal/moonraker"
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

// pruneInterval is how often expired state history rows are deleted.
const pruneInterval = 6 * time.Hour

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
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Moonbridge",
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise the entity registry from the built-in catalog
	entityRepo := entity.NewSQLiteRepository(db.DB)
	registry := entity.NewRegistry(entityRepo, entity.Catalog())
	registry.SetLogger(log)
	if syncErr := registry.Sync(ctx); syncErr != nil {
		return fmt.Errorf("syncing entity catalog: %w", syncErr)
	}
	log.Info("entity registry initialised", "entities", registry.Count())

	historyRepo := entity.NewSQLiteStateHistoryRepository(db.DB)
	jobRepo := entity.NewSQLiteJobRepository(db.DB)

	// Connect to MQTT broker
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled, printer state will only be served over the API")
	}

	// Connect to InfluxDB (optional)
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

	// Connect to Moonraker
	printer, err := moonraker.Connect(ctx, moonraker.Config{
		Host:              cfg.Moonraker.Host,
		Port:              cfg.Moonraker.Port,
		TLS:               cfg.Moonraker.TLS,
		APIKey:            cfg.Moonraker.APIKey,
		RequestTimeout:    cfg.GetRequestTimeout(),
		ReconnectInterval: time.Duration(cfg.Moonraker.Reconnect.InitialDelay) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to Moonraker: %w", err)
	}
	defer func() {
		log.Info("closing Moonraker connection")
		if closeErr := printer.Close(); closeErr != nil {
			log.Error("error closing Moonraker", "error", closeErr)
		}
	}()
	printer.SetLogger(log)
	log.Info("Moonraker connected", "url", printer.BaseURL())

	// Camera manager for webcam snapshots and print thumbnails
	webcamRepo := camera.NewSQLiteWebcamRepository(db.DB)
	cameras, err := camera.NewManager(camera.Config{
		Printer:    printer,
		BaseURL:    printer.BaseURL(),
		Repository: webcamRepo,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating camera manager: %w", err)
	}
	if refreshErr := cameras.Refresh(ctx); refreshErr != nil {
		log.Warn("initial webcam discovery failed", "error", refreshErr)
	}

	// Start the Moonraker bridge
	moonBridge, err := startBridge(ctx, cfg, mqttClient, printer, registry, historyRepo, jobRepo, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		moonBridge.Stop()
	}()

	// Start the REST/WebSocket API server
	apiServer, err := startAPI(ctx, cfg, registry, historyRepo, jobRepo, moonBridge, printer, cameras, mqttClient, log)
	if err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Prune expired state history in the background
	if cfg.History.RetentionDays > 0 {
		go pruneLoop(ctx, historyRepo, cfg.History.RetentionDays, log)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Bridge
	// 3. Moonraker
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("Moonbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MOONBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MOONBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startBridge wires and starts the Moonraker to MQTT bridge.
//
// When MQTT is disabled a no-op publisher keeps the bridge running so
// the entity registry, history and API stay live without a broker.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	printer moonraker.API,
	registry *entity.Registry,
	historyRepo entity.StateHistoryRepository,
	jobRepo entity.JobRepository,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	var publisher bridge.MQTTClient = noopMQTT{}
	if mqttClient != nil {
		publisher = &mqttBridgeAdapter{client: mqttClient}
	}

	opts := bridge.Options{
		Config:   cfg,
		MQTT:     publisher,
		Printer:  printer,
		Registry: registry,
		History:  historyRepo,
		Jobs:     jobRepo,
		Logger:   log,
		Version:  version,
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	b, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started")

	return b, nil
}

// startAPI wires and starts the REST/WebSocket API server.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	registry *entity.Registry,
	historyRepo entity.StateHistoryRepository,
	jobRepo entity.JobRepository,
	moonBridge *bridge.Bridge,
	printer moonraker.API,
	cameras *camera.Manager,
	mqttClient *mqtt.Client,
	log *logging.Logger,
) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		History:  historyRepo,
		Jobs:     jobRepo,
		Bridge:   moonBridge,
		Printer:  printer,
		Cameras:  cameras,
		Version:  version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}

	server, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	return server, nil
}

// pruneLoop periodically deletes state history rows past the retention window.
func pruneLoop(ctx context.Context, repo entity.StateHistoryRepository, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.Prune(ctx, retention)
			if err != nil {
				log.Error("state history prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("state history pruned", "deleted", deleted, "retention_days", retentionDays)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Moonraker health is verified during Connect() - it completes the
	// WebSocket handshake and identifies the client before returning.

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// noopMQTT is used when MQTT is disabled. Publishes succeed silently and
// no command subscription is established.
type noopMQTT struct{}

func (noopMQTT) Publish(string, []byte, byte, bool) error           { return nil }
func (noopMQTT) Subscribe(string, byte, func(string, []byte)) error { return nil }
func (noopMQTT) IsConnected() bool                                  { return false }
