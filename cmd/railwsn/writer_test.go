package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/sim"
	"railwsn-sim/internal/telemetry"
)

func clearSinkEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	t.Setenv("MQTT_BROKER", "")
}

func TestNewWritersConsole(t *testing.T) {
	clearSinkEnv(t)
	cases := []struct {
		output string
		want   string
	}{
		{"json", "*sim.JSONStdoutWriter"},
		{"serial", "*sim.SerialWriter"},
		{"color", "*sim.ColorStdoutWriter"},
	}
	for _, tc := range cases {
		t.Run(tc.output, func(t *testing.T) {
			w, cleanup, err := newWriters(writerOptions{Output: tc.output, Config: config.Default()})
			require.NoError(t, err)
			defer cleanup()
			assert.Equal(t, tc.want, fmt.Sprintf("%T", w))
		})
	}
}

func TestNewWritersUnknownOutput(t *testing.T) {
	clearSinkEnv(t)
	_, _, err := newWriters(writerOptions{Output: "hologram"})
	assert.Error(t, err)
}

func TestNewWritersLogFile(t *testing.T) {
	clearSinkEnv(t)
	path := filepath.Join(t.TempDir(), "status.jsonl")
	w, cleanup, err := newWriters(writerOptions{Output: "json", LogFile: path, Config: config.Default()})
	require.NoError(t, err)
	mw, ok := w.(*sim.MultiWriter)
	require.True(t, ok, "expected *sim.MultiWriter, got %T", w)
	require.NoError(t, mw.WriteVibration(telemetry.VibrationRow{Mote: 2, Source: 2, Action: "originated"}))
	require.NoError(t, cleanup())

	for _, p := range []string{path, path + ".events", path + ".routes", path + ".state"} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	b, err := os.ReadFile(path + ".events")
	require.NoError(t, err)
	assert.Contains(t, string(b), `"action":"originated"`)
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", "../../config/long-line.toml"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "ok, 12 motes, gateway 6, window 30s")
}

func TestSimulateCommandWritesLog(t *testing.T) {
	clearSinkEnv(t)
	path := filepath.Join(t.TempDir(), "status.jsonl")
	rootCmd.SetArgs([]string{"simulate",
		"--config", "../../config/network.yaml",
		"--scenario", "train-pass",
		"--duration", "3m",
		"--speed", "0",
		"--output", "json",
		"--admin", "",
		"--log-level", "error",
		"--run-id", "cli-test",
		"--log-file", path,
	})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	var rows collect
	require.NoError(t, sim.ReplayLogFile(path, &rows, 0))
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "cli-test", r.RunID)
	}
	b, err := os.ReadFile(path + ".state")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"))
}

type collect []telemetry.TrackStatusRow

func (c *collect) Write(r telemetry.TrackStatusRow) error {
	*c = append(*c, r)
	return nil
}
