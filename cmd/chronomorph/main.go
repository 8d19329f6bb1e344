package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/chronomorph/chronomorph/config"
	"github.com/chronomorph/chronomorph/pkg/entropy"
	"github.com/chronomorph/chronomorph/pkg/eventbus"
	"github.com/chronomorph/chronomorph/pkg/ledger"
	"github.com/chronomorph/chronomorph/pkg/logger"
	"github.com/chronomorph/chronomorph/pkg/metrics"
	"github.com/chronomorph/chronomorph/pkg/mutation"
	"github.com/chronomorph/chronomorph/pkg/query"
	"github.com/chronomorph/chronomorph/pkg/statestore"
	"github.com/chronomorph/chronomorph/pkg/storage"
	"github.com/chronomorph/chronomorph/pkg/storage/badger"
	"github.com/chronomorph/chronomorph/pkg/storage/memory"
	"github.com/chronomorph/chronomorph/pkg/telemetry/tracing"
	"github.com/chronomorph/chronomorph/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName     = flag.String("app-name", "", "Override app name")
	storageType = flag.String("storage", "", "Override storage backend (memory, badger)")
	logLevel    = flag.String("log-level", "", "Override log level")
	debugMode   = flag.Bool("debug", false, "Enable debug mode")

	simulateFlag = flag.Bool("simulate", false, "Seed a demo population of agents and exit")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting ChronoMorph",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize storage backend
	var store storage.Storage
	switch cfg.Storage.Type {
	case "badger":
		badgerCfg := &badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		}
		store, err = badger.NewBadgerStorage(badgerCfg)
		if err != nil {
			log.Error("Failed to create Badger storage", "error", err)
			os.Exit(1)
		}
		log.Info("Initialized Badger storage", "path", badgerCfg.Path)
	case "memory":
		store = memory.NewMemoryStorage()
		log.Info("Initialized memory storage")
	default:
		store = memory.NewMemoryStorage()
		log.Warn("Unknown storage type, using memory storage", "type", cfg.Storage.Type)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()

	// Initialize metrics manager
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Wire the core: state store, ledger, mutation engine, query gateway.
	bus := eventbus.New()

	states := statestore.New(store, statestore.WithMetrics(metricsManager))
	calc := &entropy.ShannonCalculator{StructuralWeight: cfg.Entropy.StructuralWeight}

	ledgerManager := ledger.New(store,
		ledger.WithLogger(log),
		ledger.WithBus(bus),
		ledger.WithMetrics(metricsManager),
	)
	if err := ledgerManager.Open(ctx); err != nil {
		log.Error("Failed to load persisted ledgers", "error", err)
		os.Exit(1)
	}

	engine := mutation.NewEngine(states, ledgerManager,
		mutation.WithCalculator(calc),
		mutation.WithLogger(log),
		mutation.WithMaxRetries(cfg.Ledger.MaxRetries),
		mutation.WithRetryRate(rate.Limit(cfg.Ledger.RetryRate)),
	)

	gateway := query.NewGateway(ledgerManager, states,
		query.WithCalculator(calc),
		query.WithSpikeThreshold(cfg.Entropy.SpikeThreshold),
	)

	if *simulateFlag {
		if err := runSimulation(ctx, log, engine, ledgerManager, gateway); err != nil {
			log.Error("Simulation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Surface committed events on the log so operators can follow activity.
	commits, err := bus.Subscribe(eventbus.SubjectAllCommitted, 64)
	if err != nil {
		log.Error("Failed to subscribe to commit notifications", "error", err)
		os.Exit(1)
	}
	go func() {
		defer commits.Close()
		for msg := range commits.C() {
			env, err := eventbus.UnmarshalCommitEnvelope(msg.Payload)
			if err != nil {
				log.Warn("Malformed commit envelope", "error", err)
				continue
			}
			log.Debug("Mutation committed",
				"agent_id", env.AgentID,
				"event_id", env.EventID,
				"clock", env.Clock,
				"entropy_delta", env.EntropyDelta,
			)
		}
	}()

	// Watch the config file for hot-reloadable settings.
	var watcher *config.Watcher
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watching disabled", "error", err)
		} else {
			current := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(updated *config.Config) {
				next := config.ExtractHotReloadable(updated)
				if !current.Changed(next) {
					return
				}
				log.Info("Applying hot-reloaded configuration",
					"log_level", next.LogLevel,
					"spike_threshold", next.SpikeThreshold,
				)
				logger.SetLevel(logger.ParseLevel(next.LogLevel))
				gateway.SetSpikeThreshold(next.SpikeThreshold)
				current = next
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
					log.Error("Config watcher error", "error", err)
				}
			}()
		}
	}

	log.Info("ChronoMorph is running",
		"agents", len(ledgerManager.Agents()),
		"storage", cfg.Storage.Type,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			log.Error("Error stopping config watcher", "error", err)
		}
	}

	// Export a final summary per agent before the process exits.
	for _, agentID := range ledgerManager.Agents() {
		s, err := gateway.Summary(shutdownCtx, agentID)
		if err != nil {
			log.Error("Failed to summarize agent", "agent_id", agentID, "error", err)
			continue
		}
		log.Info("Agent summary",
			"agent_id", s.AgentID,
			"events", s.Events,
			"heads", s.Heads,
			"peak_entropy", s.PeakEntropy,
			"aggregate_entropy", s.AggregateEntropy,
		)
	}

	log.Info("Shutting down tracing")
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("ChronoMorph stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *storageType != "" {
		overrides["storage.type"] = *storageType
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("ChronoMorph - Entropy-Guided Mutation Ledger\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("ChronoMorph - Append-only ledger of agent memory mutations with entropy scoring\n\n")
	fmt.Printf("Usage: chronomorph [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  chronomorph                                  # Run with default config\n")
	fmt.Printf("  chronomorph -config config.yaml              # Use specific config file\n")
	fmt.Printf("  chronomorph -storage badger -log-level debug # Override specific options\n")
	fmt.Printf("  chronomorph -version                         # Print version info\n")
}
