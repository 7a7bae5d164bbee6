// litterbridge mirrors Litter-Robot cloud state onto MQTT and forwards MQTT
// commands back to the vendor API.
//
// Configuration is read from configs/config.yaml, or the path in
// LITTERBRIDGE_CONFIG, with LITTERBRIDGE_* environment overrides.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/litterbridge/internal/api"
	"github.com/nerrad567/litterbridge/internal/bridge"
	"github.com/nerrad567/litterbridge/internal/infrastructure/config"
	"github.com/nerrad567/litterbridge/internal/infrastructure/database"
	"github.com/nerrad567/litterbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/litterbridge/internal/infrastructure/logging"
	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/journal"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
	"github.com/nerrad567/litterbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting litterbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"devices", len(cfg.Devices),
		"level", cfg.Logging.Level,
	)

	devices, err := deviceMap(cfg.Devices)
	if err != nil {
		return err
	}

	// Backing services reported on /api/v1/health.
	checks := make(map[string]api.Checker)

	// Command journal (optional)
	var journalRepo journal.Repository
	if cfg.Database.Enabled {
		db, openErr := openJournalDB(ctx, cfg.Database)
		if openErr != nil {
			return openErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		journalRepo = journal.NewSQLiteRepository(db.DB)
		checks["database"] = db
		schema, _ := db.SchemaVersion(ctx) //nolint:errcheck // informational only
		log.Info("command journal enabled", "path", cfg.Database.Path, "schema", schema)
	} else {
		log.Info("command journal disabled")
	}

	mqttLog := log.Component("mqtt")
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.Hooks{
		Logger:    mqttLog,
		OnConnect: func() { mqttLog.Info("broker session established") },
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	checks["mqtt"] = mqttClient
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		checks["influxdb"] = influxClient
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	source, err := newSource(cfg, log)
	if err != nil {
		return err
	}

	opts := bridge.Options{
		MQTT:    &mqttBridgeAdapter{client: mqttClient},
		Topics:  mqttClient.Topics(),
		Source:  source,
		Devices: devices,
		QoS:     mqttClient.QoS(),
		Discovery: bridge.DiscoveryOptions{
			Enabled:      cfg.Discovery.Enabled,
			Prefix:       cfg.Discovery.Prefix,
			NodeID:       cfg.Discovery.NodeID,
			Model:        cfg.Discovery.Model,
			Manufacturer: cfg.Discovery.Manufacturer,
		},
		PollInterval:   cfg.GetPollInterval(),
		HealthInterval: cfg.GetHealthInterval(),
		ChannelBuffer:  cfg.Polling.ChannelBuffer,
		Version:        version,
		Logger:         log.Component("bridge"),
	}
	// Typed nils must not reach the interfaces.
	if influxClient != nil {
		opts.Recorder = influxClient
	}
	if journalRepo != nil {
		opts.Journal = &journalAdapter{repo: journalRepo}
	}

	b, err := bridge.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()
	log.Info("bridge started", "poll_interval", opts.PollInterval)

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Devices: devices,
			States:  source,
			Health:  b,
			Journal: journalRepo,
			Checks:  checks,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := srv.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse: API, bridge, InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns LITTERBRIDGE_CONFIG when set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("LITTERBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func deviceMap(devices []config.DeviceConfig) (*litterrobot.DeviceMap, error) {
	keys := make([]litterrobot.DeviceKey, 0, len(devices))
	for _, d := range devices {
		keys = append(keys, litterrobot.DeviceKey{
			ExternalID: d.ExternalID,
			Slug:       d.Slug,
			Name:       d.Name,
		})
	}
	m, err := litterrobot.NewDeviceMap(keys)
	if err != nil {
		return nil, fmt.Errorf("building device map: %w", err)
	}
	return m, nil
}

func openJournalDB(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: time.Duration(cfg.BusyTimeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newSource assembles the vendor client, cache and session manager.
func newSource(cfg *config.Config, log *logging.Logger) (*litterrobot.Source, error) {
	client, err := litterrobot.NewClient(litterrobot.ClientConfig{
		BaseURL:    cfg.Vendor.BaseURL,
		APIKey:     cfg.Vendor.APIKey,
		Timeout:    cfg.GetVendorTimeout(),
		MaxRetries: cfg.Vendor.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vendor client: %w", err)
	}

	vendorLog := log.Component("litterrobot")
	store := litterrobot.NewStore()
	sessions := litterrobot.NewSessionManager(client, litterrobot.Credentials{
		Email:    cfg.Vendor.Email,
		Password: cfg.Vendor.Password,
	}, store, cfg.GetSessionTTL(), vendorLog)

	source, err := litterrobot.NewSource(litterrobot.SourceOptions{
		API:      client,
		Sessions: sessions,
		Store:    store,
		StateTTL: cfg.GetStateTTL(),
		// A refresh is a login plus a list, each retried up to MaxRetries.
		FetchTimeout: 2 * time.Duration(cfg.Vendor.MaxRetries+1) * cfg.GetVendorTimeout(),
		Logger:       vendorLog,
	})
	if err != nil {
		return nil, fmt.Errorf("creating state source: %w", err)
	}
	return source, nil
}
