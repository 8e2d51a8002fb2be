// Gray Latch Core - Access Slot Controller
//
// This is the main entry point for the Gray Latch Core application.
// Gray Latch manages the fixed access slots of a remotely controlled lock:
//   - Durable desired state with a mirror of what the lock last reported
//   - Push/pull reconciliation over an MQTT protocol bridge
//   - Schedule windows and usage limits enforced slot by slot
//   - REST + WebSocket API for operator tooling
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-latch-core/migrations"

	"github.com/nerrad567/gray-latch-core/internal/api"
	"github.com/nerrad567/gray-latch-core/internal/event"
	"github.com/nerrad567/gray-latch-core/internal/history"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-latch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-latch-core/internal/lock"
	"github.com/nerrad567/gray-latch-core/internal/reconcile"
	"github.com/nerrad567/gray-latch-core/internal/schedule"
	"github.com/nerrad567/gray-latch-core/internal/slot"
	"github.com/nerrad567/gray-latch-core/internal/usage"
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
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
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
	log.Info("starting Gray Latch Core",
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

	// Initialise slot repository and materialise the fixed slot range
	slotRepo := slot.NewSQLiteRepository(db.DB)
	if ensureErr := slotRepo.EnsureSlots(ctx, cfg.Lock.SlotCount); ensureErr != nil {
		return fmt.Errorf("ensuring slot rows: %w", ensureErr)
	}
	log.Info("slot repository initialised", "slots", cfg.Lock.SlotCount)

	histRepo := history.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
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

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the lock gateway (request/response channel to the protocol bridge)
	gateway := lock.NewBridgeGateway(mqttClient, cfg.Lock.Protocol, cfg.Lock.GetRequestTimeout(), log)
	if startErr := gateway.Start(); startErr != nil {
		return fmt.Errorf("starting lock gateway: %w", startErr)
	}
	defer func() {
		log.Info("stopping lock gateway")
		if closeErr := gateway.Close(); closeErr != nil {
			log.Error("error stopping lock gateway", "error", closeErr)
		}
	}()
	log.Info("lock gateway started", "protocol", cfg.Lock.Protocol)

	// The hub is created here rather than inside the API server because the
	// event publisher broadcasts to it as well.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	events := event.NewPublisher(mqttClient, hub, log)

	bounds := slot.CodeBounds{Min: cfg.Lock.MinCodeLength, Max: cfg.Lock.MaxCodeLength}
	reconciler := reconcile.NewReconciler(slotRepo, gateway, events, reconcile.Options{
		CodeBounds:     bounds,
		SettleInterval: cfg.Lock.GetSettleInterval(),
		VerifyRetries:  cfg.Lock.VerifyRetries,
	}, log)

	// Schedule monitor turns window transitions into pushes
	monitor := schedule.NewMonitor(slotRepo, reconciler, events, cfg.Schedule.GetInterval(), log)
	go monitor.Run(ctx)

	// Usage tracker consumes access events from the bridge.
	// The interface value must stay nil when Influx is disabled.
	var metrics usage.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
	}
	tracker := usage.NewTracker(slotRepo, histRepo, reconciler, events, metrics, cfg.Lock.Protocol, log)
	if startErr := tracker.Start(mqttClient); startErr != nil {
		return fmt.Errorf("starting usage tracker: %w", startErr)
	}
	log.Info("usage tracker started")

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Slots:       slotRepo,
		Syncer:      reconciler,
		History:     histRepo,
		Events:      events,
		Bounds:      bounds,
		MQTT:        mqttClient,
		DB:          db.DB,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Best-effort startup pull so the mirror reflects the lock before the
	// first operator request. The lock may be asleep; a failure here only
	// leaves sync status unknown until the next pull.
	if pullErr := reconciler.PullAll(ctx); pullErr != nil {
		log.Warn("initial slot pull failed", "error", pullErr)
	} else {
		log.Info("initial slot pull complete")
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

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Lock gateway
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Gray Latch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Lock gateway health is verified during Start() - it subscribes to the
	// bridge response topic before returning successfully.

	return nil
}
