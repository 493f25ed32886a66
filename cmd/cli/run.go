package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"haf/pkg/logging"
	"haf/pkg/simulation"
	"haf/storage"
)

func runCmd() *cobra.Command {
	var (
		nodes             int
		replicationFactor int
		duration          time.Duration
		seed              int64
		archive           bool
		dashboard         bool
		asJSON            bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if nodes > 0 {
				cfg.Cluster.NodeCount = nodes
			}
			if replicationFactor > 0 {
				cfg.Cluster.ReplicationFactor = replicationFactor
			}
			if duration > 0 {
				cfg.Coordinator.RunBudget = duration
			}
			if seed != 0 {
				cfg.Node.Seed = seed
			}
			if archive || dataDir != "" {
				cfg.Archive.Enabled = true
			}
			if cmd.Flags().Changed("dashboard") {
				cfg.Logging.Dashboard = dashboard
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(cfg.Logging, cmd.ErrOrStderr())
			opts := []simulation.Option{simulation.WithLogger(logger)}
			if cfg.Logging.Dashboard {
				opts = append(opts, simulation.WithObserver(simulation.NewLogObserver(logger.Named("dashboard"))))
			}
			if cfg.Archive.Enabled {
				a, err := storage.OpenBadger(cfg.Archive.DataDir, cfg.Archive.CacheMB)
				if err != nil {
					return err
				}
				defer a.Close()
				opts = append(opts, simulation.WithArchive(a))
			}

			sim, err := simulation.New(cfg, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := sim.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if err := report.Write(out); err != nil {
				return err
			}
			if cfg.Archive.Enabled {
				fmt.Fprintf(out, "Archived as %s in %s\n", report.RunID, cfg.Archive.DataDir)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&nodes, "nodes", 0, "Number of simulated nodes")
	cmd.Flags().IntVar(&replicationFactor, "replication-factor", 0, "Nodes selected per assignment")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Coordinator run budget")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for node behavior")
	cmd.Flags().BoolVar(&archive, "archive", false, "Keep the report and assignments in the archive")
	cmd.Flags().BoolVar(&dashboard, "dashboard", true, "Log node availability after each assignment (overrides logging.dashboard)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}
