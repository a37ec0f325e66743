package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"railwsn-sim/internal/admin"
	"railwsn-sim/internal/config"
	"railwsn-sim/internal/logging"
	"railwsn-sim/internal/scenario"
	"railwsn-sim/internal/sim"
	"railwsn-sim/internal/telemetry"
)

var (
	simConfigPath string
	simSchemaPath string
	simScenario   string
	simSpeed      float64
	simDuration   time.Duration
	simOutput     string
	simLogFile    string
	simDebugLog   string
	simAdminAddr  string
	simRunID      string
)

// loadConfig reads path, or validates the built-in defaults when path is
// empty.
func loadConfig(path, schema string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg, schema)
	}
	return config.Load(path, schema)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the track network simulator",
	Long:  "simulate runs the motes on a virtual clock, paced against the wall clock, and streams gateway reports, vibration events, route changes and network counters to the selected outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := level(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}
		gen := telemetry.NewGenerator(simRunID, time.Now())

		var console io.Writer
		if simOutput == "tui" {
			console = io.Discard
		}
		log, closeLog, err := logging.New(logging.Options{
			Level:    lvl,
			Console:  console,
			Prefix:   shortID(gen.RunID) + " ",
			FilePath: simDebugLog,
		})
		if err != nil {
			return err
		}
		defer closeLog()

		writer, cleanup, err := newWriters(writerOptions{
			Output:  simOutput,
			LogFile: simLogFile,
			Config:  cfg,
			RunID:   gen.RunID,
			Log:     log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				log.Warn("closing writers", "err", err)
			}
		}()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		simulator, err := sim.NewSimulator(cfg, writer,
			sim.WithLogger(log),
			sim.WithMetrics(sim.NewMetrics(reg)),
			sim.WithGenerator(gen),
		)
		if err != nil {
			return err
		}
		if simScenario != "" {
			sc, err := scenario.Resolve(simScenario)
			if err != nil {
				return err
			}
			if err := simulator.ApplyScenario(sc); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		if simAdminAddr != "" {
			srv := admin.NewServer(simulator, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)
			aw, hasAdmin := writer.(sim.AdminStatusWriter)
			go func() {
				if hasAdmin {
					aw.SetAdminStatus(true)
				}
				if err := srv.Start(ctx, simAdminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("admin server failed", "err", err)
				}
				if hasAdmin {
					aw.SetAdminStatus(false)
				}
			}()
		}

		if err := simulator.RunUntil(ctx, simSpeed, simDuration); err != nil {
			return err
		}
		log.Info("track simulation stopped", "windows", simulator.Status().Windows)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/network.yaml", "Path to network configuration (YAML or TOML); empty uses built-in defaults")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "", "Path to CUE schema file; empty uses the built-in schema")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "Built-in scenario name or path to a scenario YAML")
	simulateCmd.Flags().Float64Var(&simSpeed, "speed", 1.0, "Virtual time speed-up; 0 runs as fast as possible")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "Stop after this much virtual time; 0 runs until interrupted")
	simulateCmd.Flags().StringVar(&simOutput, "output", "auto", "Output: auto, serial, json, color or tui")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export status rows (JSONL); events, routes and state go next to it")
	simulateCmd.Flags().StringVar(&simDebugLog, "debug-log", "", "Path to append JSON process logs")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin", ":8080", "Admin UI listen address; empty disables it")
	simulateCmd.Flags().StringVar(&simRunID, "run-id", "", "Run identifier; random when empty")
}
