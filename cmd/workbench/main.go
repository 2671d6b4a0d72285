// Workbench Core - printer registry and connectivity probe service.
//
// The serve command runs the REST and WebSocket API over a SQLite printer
// registry. Other commands operate on the same database and config file
// without starting a server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/workbench-core/migrations"

	"github.com/nerrad567/workbench-core/internal/api"
	"github.com/nerrad567/workbench-core/internal/audit"
	"github.com/nerrad567/workbench-core/internal/auth"
	"github.com/nerrad567/workbench-core/internal/discovery"
	"github.com/nerrad567/workbench-core/internal/infrastructure/config"
	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
	"github.com/nerrad567/workbench-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/workbench-core/internal/infrastructure/logging"
	"github.com/nerrad567/workbench-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/workbench-core/internal/notify"
	"github.com/nerrad567/workbench-core/internal/printer"
	"github.com/nerrad567/workbench-core/internal/probe"
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

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "workbench",
		Short: "Printer registry and connectivity probe service",
		Long: `Workbench keeps a registry of shop printers, probes them over raw 9100
or IPP, and tracks which single printer is currently connected.

Run "workbench serve" to start the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $WORKBENCH_CONFIG or "+defaultConfigPath+")")

	cfgPath := func() string {
		if configPath != "" {
			return configPath
		}
		return getConfigPath()
	}

	cmd.AddCommand(
		serveCmd(cfgPath),
		migrateCmd(cfgPath),
		printersCmd(cfgPath),
		hashPasswordCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "workbench %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return cmd
}

func serveCmd(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the printer API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath())
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses WORKBENCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WORKBENCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run starts every component, blocks until ctx is cancelled, then shuts
// down in reverse order through the deferred closers.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Workbench Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"dev_mode", cfg.Security.DevMode,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	probeMetrics, err := probe.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering probe metrics: %w", err)
	}

	manager := newManager(cfg, db, probeMetrics)
	manager.SetLogger(log.Component("printer"))

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditSink := notify.NewAuditSink(auditRepo)
	auditSink.SetLogger(log.Component("audit"))
	manager.AddSink(auditSink)

	// MQTT is optional; a broker outage never blocks the registry.
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
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		sink := notify.NewMQTTSink(mqttClient)
		sink.SetLogger(log.Component("notify"))
		manager.AddSink(sink)

		if cfg.MQTT.Commands {
			commands := notify.NewCommandListener(mqttClient, manager, byte(cfg.MQTT.QoS))
			commands.SetLogger(log.Component("commands"))
			if err := commands.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if stopErr := commands.Stop(); stopErr != nil {
					log.Warn("error unsubscribing printer commands", "error", stopErr)
				}
			}()
		}
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.AddSink(notify.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var discoverer api.Discoverer
	if cfg.Discovery.Enabled {
		discoverer = newDiscoverer(cfg, log)
		log.Info("mDNS discovery enabled", "domain", cfg.Discovery.Domain, "browse_timeout", cfg.DiscoveryTimeout())
	}

	if hash := cfg.Security.Admin.PasswordHash; hash != "" {
		if err := auth.ValidateHash(hash); err != nil {
			return fmt.Errorf("security.admin.password_hash: %w", err)
		}
	}

	var authenticator *auth.Authenticator
	if cfg.Security.Admin.PasswordHash != "" || !cfg.Security.DevMode {
		authenticator = auth.NewAuthenticator(
			cfg.Security.Admin.Username,
			cfg.Security.Admin.PasswordHash,
			cfg.Security.JWT.Secret,
			accessTokenTTL(cfg),
		)
		if cfg.Security.Admin.PasswordHash == "" {
			log.Warn("no admin password hash configured; logins will be refused")
		}
	}
	if cfg.Security.DevMode {
		log.Warn("dev mode enabled: printer routes are unauthenticated")
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Printers:   manager,
		Auth:       authenticator,
		DB:         db,
		Discoverer: discoverer,
		Audit:      auditRepo,
		MQTT:       mqttClient,
		Influx:     influxClient,
		Gatherer:   registry,
		Version:    version,
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closers run in reverse: API, InfluxDB, MQTT, database.
	return nil
}

// openDatabase opens the configured database and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newManager wires the probe dispatcher and SQLite repository into a
// printer manager. Observers receive every completed probe.
func newManager(cfg *config.Config, db *database.DB, observers ...probe.Observer) *printer.Manager {
	dispatcher := probe.NewDispatcher(probe.Config{
		Timeout: cfg.ProbeTimeout(),
		IPPPath: cfg.Probe.IPPStatusPath,
	}, observers...)
	return printer.NewManager(printer.NewSQLiteRepository(db.DB), dispatcher)
}

func newDiscoverer(cfg *config.Config, log *logging.Logger) *discovery.Discoverer {
	d := discovery.New(discovery.Config{
		Domain:  cfg.Discovery.Domain,
		Timeout: cfg.DiscoveryTimeout(),
	})
	d.SetLogger(log.Component("discovery"))
	return d
}

// healthCheck verifies the infrastructure connections that are enabled.
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
	return nil
}
