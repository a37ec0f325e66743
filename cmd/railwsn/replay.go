package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"railwsn-sim/internal/logging"
	"railwsn-sim/internal/sim"
	"railwsn-sim/internal/telemetry"
)

var (
	replayInput  string
	replaySpeed  float64
	replaySerial bool
	replayWindow time.Duration
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a status log or a serial capture",
	Long:  "replay feeds track status rows from a JSONL log, or windows parsed from a captured gateway serial stream, back into GreptimeDB, MQTT or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		lvl, err := level(cmd)
		if err != nil {
			return err
		}
		log, closeLog, err := logging.New(logging.Options{Level: lvl})
		if err != nil {
			return err
		}
		defer closeLog()

		gen := telemetry.NewGenerator("", time.Now())
		writer, cleanup, err := newWriters(writerOptions{Output: replayOutput, RunID: gen.RunID, Log: log})
		if err != nil {
			return err
		}
		defer cleanup()

		if replaySerial {
			return sim.ReplaySerialFile(replayInput, writer, sim.SerialReplay{
				RunID:  gen.RunID,
				Start:  gen.Start,
				Period: replayWindow,
				Speed:  replaySpeed,
			})
		}
		return sim.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to status log or serial capture")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier; 0 replays without delay")
	replayCmd.Flags().BoolVar(&replaySerial, "serial", false, "Input is a captured gateway serial stream")
	replayCmd.Flags().DurationVar(&replayWindow, "window", time.Minute, "Aggregation window of the serial capture")
	replayCmd.Flags().StringVar(&replayOutput, "output", "json", "Output: auto, serial, json or color")
	replayCmd.MarkFlagRequired("input")
}
