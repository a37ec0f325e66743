package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/sim"
)

type writerOptions struct {
	// Output picks the console sink: auto, serial, json, color or tui.
	Output string
	// LogFile, when set, also exports every row kind as JSONL.
	LogFile string
	Config  *config.Config
	RunID   string
	Log     *slog.Logger
}

// newWriters sets up the console writer plus the GreptimeDB, MQTT and file
// sinks enabled by env vars and flags. The returned cleanup closes every sink.
func newWriters(opts writerOptions) (sim.StatusWriter, func() error, error) {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	base, err := consoleWriter(opts.Output, opts.Config)
	if err != nil {
		return nil, nil, err
	}
	writers := []sim.StatusWriter{base}
	closeAll := func() error {
		var errs []error
		for _, w := range writers {
			if c, ok := w.(io.Closer); ok {
				errs = append(errs, c.Close())
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (sim.StatusWriter, func() error, error) {
		_ = closeAll()
		return nil, nil, err
	}

	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		gw, err := sim.NewGreptimeDBWriter(endpoint, os.Getenv("GREPTIMEDB_DATABASE"), opts.Log)
		if err != nil {
			return fail(fmt.Errorf("greptimedb writer: %w", err))
		}
		writers = append(writers, gw)
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		prefix := os.Getenv("MQTT_TOPIC")
		if prefix == "" {
			prefix = "railwsn"
		}
		mw, err := sim.NewMQTTWriter(broker, "railwsn-sim-"+opts.RunID, prefix, opts.Log)
		if err != nil {
			return fail(fmt.Errorf("mqtt writer: %w", err))
		}
		writers = append(writers, mw)
	}
	if opts.LogFile != "" {
		fw, err := sim.NewFileWriter(opts.LogFile, opts.LogFile+".events", opts.LogFile+".routes", opts.LogFile+".state")
		if err != nil {
			return fail(err)
		}
		writers = append(writers, fw)
	}

	if len(writers) == 1 {
		return base, closeAll, nil
	}
	return sim.NewMultiWriter(writers...), closeAll, nil
}

// consoleWriter chooses the STDOUT sink.
func consoleWriter(output string, cfg *config.Config) (sim.StatusWriter, error) {
	switch output {
	case "", "auto":
		return sim.NewStdoutWriter(cfg), nil
	case "serial":
		return sim.NewSerialWriter(nil), nil
	case "json":
		return sim.NewJSONStdoutWriter(), nil
	case "color":
		return sim.NewColorStdoutWriter(cfg), nil
	case "tui":
		return sim.NewTUIWriter(cfg), nil
	}
	return nil, fmt.Errorf("unknown output %q", output)
}
