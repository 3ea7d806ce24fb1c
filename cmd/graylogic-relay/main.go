// Gray Logic Relay - resilient MQTT message relay
//
// The relay holds one long-lived broker session, reconnecting for as long as
// it runs, and hands every inbound message to:
//   - the SQLite message archive (optional)
//   - InfluxDB message metrics (optional)
//   - live WebSocket streams filtered by topic
//
// An HTTP API exposes health, counters, publishing and message history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-relay/internal/api"
	"github.com/nerrad567/gray-logic-relay/internal/archive"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-relay/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// statsInterval is how often client counters are written to InfluxDB.
const statsInterval = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Components are torn down in reverse order of construction.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Relay",
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

	log = logging.New(cfg.Logging, version)

	// Resolve the client identity up front so metrics can be tagged with it.
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = "graylogic-relay-" + uuid.NewString()
	}
	clientID := cfg.MQTT.Broker.ClientID

	var handlers []mqtt.MessageHandler

	// Message archive (optional)
	var repo archive.Repository
	if cfg.Database.Enabled {
		db, dbErr := database.Open(ctx, cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("message archive ready", "path", cfg.Database.Path, "retention", cfg.Database.Retention())

		sqliteRepo := archive.NewSQLiteRepository(db.DB)
		repo = sqliteRepo
		archiver := archive.NewArchiver(sqliteRepo, cfg.Database.Retention(), log)
		handlers = append(handlers, archiver.Handle)

		defer goSupervised(ctx, archiver.Run)()
	} else {
		log.Info("message archive disabled")
	}

	// InfluxDB metrics (optional, non-fatal)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, continuing without metrics", "error", err)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			handlers = append(handlers, influxClient.MessageHandler(clientID))
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Live WebSocket stream
	hub := api.NewHub(cfg.WebSocket, log)
	defer goSupervised(ctx, hub.Run)()
	handlers = append(handlers, hub.Handle)

	// Resilient MQTT client
	mqttClient, err := mqtt.NewFromConfig(cfg.MQTT, log, handlers...)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	if influxClient != nil {
		mqttClient.SetOnConnect(func() {
			influxClient.WriteConnectionEvent(clientID, influxdb.EventConnected, "")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			reason := ""
			if err != nil {
				reason = err.Error()
			}
			influxClient.WriteConnectionEvent(clientID, influxdb.EventDisconnected, reason)
		})
	}
	if err := mqttClient.Start(ctx); err != nil {
		return fmt.Errorf("starting MQTT client: %w", err)
	}
	defer mqttClient.Shutdown()

	if influxClient != nil {
		// Stopped before the MQTT client and the InfluxDB connection close.
		defer goSupervised(ctx, func(ctx context.Context) {
			writeStatsLoop(ctx, influxClient, mqttClient)
		})()
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			MQTT:     mqttClient,
			Archive:  repo,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	log.Info("Gray Logic Relay started", "client_id", clientID)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_RELAY_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_RELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// goSupervised runs fn in a goroutine with a child of ctx. The returned
// stop function cancels that context and waits for fn to return.
func goSupervised(ctx context.Context, fn func(context.Context)) (stop func()) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(runCtx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// writeStatsLoop writes client counter snapshots until ctx is done.
func writeStatsLoop(ctx context.Context, influxClient *influxdb.Client, mqttClient *mqtt.Client) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			influxClient.WriteClientStats(mqttClient.ClientID(), clientStats(mqttClient.Stats()))
		}
	}
}

// clientStats converts mqtt counters to the influxdb snapshot type.
func clientStats(s mqtt.Stats) influxdb.ClientStats {
	return influxdb.ClientStats{
		ConnectAttempts:  s.ConnectAttempts,
		Connections:      s.Connections,
		Disconnections:   s.Disconnections,
		MessagesReceived: s.MessagesReceived,
		HandlerFailures:  s.HandlerFailures,
		Published:        s.Published,
	}
}
