// lnbridge relays LocoNet bus commands between layout nodes over MQTT.
//
// Each node publishes bus traffic on a shared broadcast channel, recognises
// its own messages when the broker echoes them back, and announces itself
// on a ping channel. The bus driver itself is external; this binary logs
// every message it would hand over.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/lnbridge/internal/api"
	"github.com/nerrad567/lnbridge/internal/discovery"
	"github.com/nerrad567/lnbridge/internal/hostinfo"
	"github.com/nerrad567/lnbridge/internal/infrastructure/config"
	"github.com/nerrad567/lnbridge/internal/infrastructure/database"
	"github.com/nerrad567/lnbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/lnbridge/internal/infrastructure/logging"
	"github.com/nerrad567/lnbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lnbridge/internal/metrics"
	"github.com/nerrad567/lnbridge/internal/relay"
	"github.com/nerrad567/lnbridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when LNBRIDGE_CONFIG is unset. A missing default
// file is not an error: the built-in defaults apply.
const defaultConfigPath = "configs/lnbridge.yaml"

// peerPruneInterval is how often stale peers are removed from the registry.
const peerPruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting lnbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, source, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "source", source)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// The hardware ID is read once so the name used for logs and metrics
	// labels is the one the engine resolves.
	hardwareID := sync.OnceValues(hostinfo.HardwareID)
	name, err := relay.ResolveIdentity(relay.Identity{
		BaseName:          cfg.Node.Name,
		UseHardwareSuffix: cfg.Node.IncludeHardwareID,
	}, hardwareID)
	if err != nil {
		return fmt.Errorf("resolving node name: %w", err)
	}
	log = log.ForNode(name)

	opts := relayOptions(cfg, hardwareID)
	opts.Handler = logBusMessage(log)
	opts.Host = hostinfo.NewProbe()
	opts.Logger = log

	checks := make(map[string]api.HealthChecker)

	// Peer registry (optional)
	var peers *discovery.PeerRecorder
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		applied, err := db.Migrate(ctx, migrations.FS)
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database ready", "path", db.Path(), "migrations_applied", applied)
		checks["database"] = db

		peers, err = discovery.NewPeerRecorder(db.DB, 0, nil)
		if err != nil {
			return fmt.Errorf("starting peer recorder: %w", err)
		}
		peers.SetLogger(log)
		defer func() {
			if closeErr := peers.Close(); closeErr != nil {
				log.Error("error closing peer recorder", "error", closeErr)
			}
		}()
		opts.Peers = peers

		if retention := cfg.GetPeerRetention(); retention > 0 {
			pruneCtx, stopPrune := context.WithCancel(ctx)
			var pruning sync.WaitGroup
			pruning.Go(func() {
				peers.PruneStale(pruneCtx, retention, peerPruneInterval)
			})
			defer func() {
				stopPrune()
				pruning.Wait()
			}()
		}
	} else {
		log.Info("peer registry disabled")
	}

	// Telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		opts.Telemetry = influx
		checks["influxdb"] = influx
	} else {
		log.Info("InfluxDB disabled")
	}

	transport := mqtt.NewTransport(cfg.MQTT)
	transport.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	opts.Transport = transport
	checks["mqtt"] = transport

	// Metrics and status endpoint (optional)
	board := &api.StatusBoard{}
	if cfg.Metrics.Enabled {
		recorder := metrics.New(name)
		if err := registerDropCounters(recorder, transport, peers); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		opts.Metrics = recorder

		deps := api.Deps{
			Listen:  cfg.Metrics.Listen,
			Logger:  log,
			Metrics: recorder.Handler(),
			Status:  board,
			Checks:  checks,
			Version: version,
		}
		if peers != nil {
			deps.Peers = peers
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating status server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting status server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	engine, err := relay.NewEngine(opts)
	if err != nil {
		return fmt.Errorf("creating relay engine: %w", err)
	}
	log.Info("relay ready",
		"node", engine.NodeName(),
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topics", engine.Topics(),
		"queue_capacity", engine.QueueCap(),
		"heartbeat_interval", cfg.GetHeartbeatInterval(),
	)

	loop(ctx, engine, cfg.GetTickInterval(), func() {
		board.Update(snapshot(engine, transport))
	})

	log.Info("shutdown signal received, stopping")
	return nil
}

// relayOptions maps the configuration onto engine options. The engine
// resolves the node name itself from the base name and hardwareID.
func relayOptions(cfg *config.Config, hardwareID relay.HardwareIDFunc) relay.Options {
	return relay.Options{
		NodeName:          cfg.Node.Name,
		UseHardwareSuffix: cfg.Node.IncludeHardwareID,
		HardwareID:        hardwareID,
		Topics: relay.Topics{
			Broadcast: cfg.Relay.Topics.Broadcast,
			Echo:      cfg.Relay.Topics.Echo,
			Ping:      cfg.Relay.Topics.Ping,
		},
		QueueSize:         cfg.Relay.QueueSize,
		ReconnectInterval: cfg.GetReconnectInterval(),
		HeartbeatInterval: cfg.GetHeartbeatInterval(),
	}
}

// loop ticks engine every interval until ctx is cancelled, calling after
// once per tick.
func loop(ctx context.Context, engine *relay.Engine, interval time.Duration, after func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Tick()
			if after != nil {
				after()
			}
		}
	}
}

// snapshot captures the engine state for the status endpoint. It runs on
// the relay goroutine.
func snapshot(engine *relay.Engine, transport *mqtt.Transport) api.Status {
	state := engine.State()
	return api.Status{
		Node:           engine.NodeName(),
		State:          state.String(),
		Connected:      state == relay.Connected,
		QueueLen:       engine.QueueLen(),
		QueueCap:       engine.QueueCap(),
		NextHeartbeat:  engine.NextHeartbeat(),
		InboundDropped: transport.Dropped(),
		UpdatedAt:      time.Now().UTC(),
	}
}

// logBusMessage is the default bus handler: with no bus driver attached,
// every routed message is logged.
func logBusMessage(log *logging.Logger) relay.Handler {
	return func(msg relay.RelayMessage) {
		log.Debug("bus message",
			"from", msg.From,
			"echo", msg.IsEcho(),
			"request_id", msg.RequestID,
			"payload", fmt.Sprintf("% X", msg.Payload),
			"round_trip", msg.EchoRoundTrip.Duration(),
		)
	}
}

// registerDropCounters exposes counters owned by the transport and the peer
// recorder. peers may be nil.
func registerDropCounters(recorder *metrics.Recorder, transport *mqtt.Transport, peers *discovery.PeerRecorder) error {
	if err := recorder.RegisterCounterFunc("inbound_dropped_total",
		"Inbound messages dropped because the relay loop fell behind.",
		func() float64 { return float64(transport.Dropped()) },
	); err != nil {
		return err
	}
	if peers == nil {
		return nil
	}
	return recorder.RegisterCounterFunc("peer_records_dropped_total",
		"Peer heartbeats dropped because the registry writer fell behind.",
		func() float64 { return float64(peers.Dropped()) },
	)
}

// loadConfig picks the configuration source:
//   - LNBRIDGE_CONFIG, or the default path if it exists
//   - files ending in .cfg or .json are read as legacy mqtt.cfg documents
//   - with no file at all, the built-in defaults apply
func loadConfig() (*config.Config, string, error) {
	path := os.Getenv("LNBRIDGE_CONFIG")
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); errors.Is(err, os.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "defaults", err
		}
		path = defaultConfigPath
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cfg", ".json":
		cfg, err := config.LoadLegacy(path)
		return cfg, path, err
	default:
		cfg, err := config.Load(path)
		return cfg, path, err
	}
}
