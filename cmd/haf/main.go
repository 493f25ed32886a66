package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"haf/config"
	"haf/pkg/logging"
	"haf/pkg/simulation"
	"haf/storage"
)

var (
	configPath        = flag.String("config", "", "Path to configuration file")
	nodes             = flag.Int("nodes", 0, "Number of simulated nodes")
	replicationFactor = flag.Int("replication-factor", 0, "Nodes selected per assignment")
	duration          = flag.Duration("duration", 0, "Coordinator run budget")
	logLevel          = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	seed              = flag.Int64("seed", 0, "Seed for node behavior, 0 picks one from the clock")
	metricsAddr       = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	archiveDir        = flag.String("archive-dir", "", "Keep reports in a Badger archive at this path")
	dashboard         = flag.Bool("dashboard", true, "Log node availability after each assignment (overrides logging.dashboard)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	if err := run(cfg, logger); err != nil {
		logger.Error("haf failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger hclog.Logger) error {
	opts := []simulation.Option{simulation.WithLogger(logger)}
	if cfg.Logging.Dashboard {
		opts = append(opts, simulation.WithObserver(simulation.NewLogObserver(logger.Named("dashboard"))))
	}

	// Initialize archive
	if cfg.Archive.Enabled {
		archive, err := storage.OpenBadger(cfg.Archive.DataDir, cfg.Archive.CacheMB)
		if err != nil {
			return fmt.Errorf("failed to open archive %s: %w", cfg.Archive.DataDir, err)
		}
		defer archive.Close()
		opts = append(opts, simulation.WithArchive(archive))
	}

	sim, err := simulation.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	report, runErr := sim.Run(ctx)

	fmt.Println()
	if err := report.Write(os.Stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Debug("haf stopped", "run", sim.RunID(), "elapsed", time.Since(start))

	return runErr
}

// applyFlags overrides cfg with the command line flags that were set.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nodes":
			cfg.Cluster.NodeCount = *nodes
		case "replication-factor":
			cfg.Cluster.ReplicationFactor = *replicationFactor
		case "duration":
			cfg.Coordinator.RunBudget = *duration
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "seed":
			cfg.Node.Seed = *seed
		case "metrics-addr":
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = *metricsAddr
		case "archive-dir":
			cfg.Archive.Enabled = true
			cfg.Archive.DataDir = *archiveDir
		case "dashboard":
			cfg.Logging.Dashboard = *dashboard
		}
	})
}
