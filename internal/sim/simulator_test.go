package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/scenario"
	"railwsn-sim/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig is the default deployment with every random impairment off.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Radio.CommunicationLoss = 0
	cfg.Radio.ShadowingSigmaDB = 0
	cfg.Sensor.NoiseSigma = 0
	cfg.Sensor.ErrorRate = 0
	return cfg
}

func newTestSimulator(t *testing.T, w StatusWriter) *Simulator {
	t.Helper()
	gen := telemetry.NewGenerator("test-run", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s, err := NewSimulator(testConfig(), w, WithLogger(testLogger()), WithGenerator(gen))
	require.NoError(t, err)
	return s
}

func unionFlags(rows []telemetry.TrackStatusRow, n int) []bool {
	out := make([]bool, n)
	for _, r := range rows {
		for i, f := range r.Flags {
			if f && i < n {
				out[i] = true
			}
		}
	}
	return out
}

func TestNewSimulatorRejectsBadGateway(t *testing.T) {
	cfg := testConfig()
	cfg.Network.Gateway = cfg.Network.Motes + 1
	_, err := NewSimulator(cfg, &recorder{}, WithLogger(testLogger()))
	require.ErrorIs(t, err, mote.ErrInvalidNode)
}

func TestRoutesConverge(t *testing.T) {
	s := newTestSimulator(t, &recorder{})
	require.NoError(t, s.RunFor(60*time.Second))

	cfg := s.Config()
	for _, r := range s.Routes() {
		if r.ID == cfg.Network.Gateway {
			assert.Equal(t, "gateway", r.Role)
			assert.Equal(t, r.ID, r.NextHop)
			assert.Zero(t, r.Cost)
			continue
		}
		assert.Equal(t, "field", r.Role)
		assert.NotZero(t, r.NextHop, "mote %d has no route", r.ID)
		assert.Less(t, r.Cost, cfg.Network.CostSentinel, "mote %d cost", r.ID)
	}
}

func TestQuietTrackReportsHealthyWindows(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, rec)
	require.NoError(t, s.RunFor(3*time.Minute))

	require.Len(t, rec.statuses, 3)
	for i, row := range rec.statuses {
		assert.Equal(t, i+1, row.Window)
		assert.Equal(t, "test-run", row.RunID)
		assert.False(t, row.TrainArrival)
		assert.Empty(t, row.Faulted)
	}
	assert.Len(t, rec.states, 3)
	assert.NotEmpty(t, rec.routes)
	assert.Empty(t, rec.vibrations)

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, 3, last.Window)
	assert.True(t, last.Timestamp.Equal(time.Date(2024, 5, 1, 12, 3, 0, 0, time.UTC)), "timestamp %v", last.Timestamp)
}

func TestTrainPassFlagsEveryMote(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, rec)
	require.NoError(t, s.RunFor(60*time.Second))

	tr, err := s.DispatchTrain(1, 20)
	require.NoError(t, err)
	assert.False(t, tr.Stopped)
	require.NoError(t, s.RunFor(3*time.Minute))

	n := s.Config().Network.Motes
	for i, f := range unionFlags(rec.statuses, n) {
		assert.True(t, f, "mote %d never flagged", i+1)
	}
	arrival := false
	for _, r := range rec.statuses {
		arrival = arrival || r.TrainArrival
	}
	assert.True(t, arrival, "no window reported the train")
	assert.NotEmpty(t, rec.vibrations)
	assert.Empty(t, s.Status().Trains, "train should have left the line")
}

func TestBrokenRailIsReported(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, rec)
	require.NoError(t, s.RunFor(60*time.Second))
	require.NoError(t, s.BreakSection(3))
	_, err := s.DispatchTrain(1, 2)
	require.NoError(t, err)
	require.NoError(t, s.RunFor(3*time.Minute))

	flags := unionFlags(rec.statuses, 6)
	assert.True(t, flags[0], "mote 1 should feel the train")
	for _, id := range []int{4, 5, 6} {
		assert.False(t, flags[id-1], "mote %d is beyond the break", id)
	}
	faulty4 := false
	for _, r := range rec.statuses {
		for _, id := range r.Faulted {
			faulty4 = faulty4 || id == 4
		}
	}
	assert.True(t, faulty4, "section 4 never reported faulty")

	st := s.Status()
	assert.Equal(t, []int{3}, st.Breaks)
	require.Len(t, st.Trains, 1)
	assert.True(t, st.Trains[0].Stopped)
	require.NotEmpty(t, rec.states)
	assert.Equal(t, []int{3}, rec.states[len(rec.states)-1].Breaks)

	require.NoError(t, s.RepairSection(3))
	assert.Empty(t, s.Status().Breaks)
}

func TestSectionErrors(t *testing.T) {
	s := newTestSimulator(t, &recorder{})
	assert.Error(t, s.BreakSection(0))
	assert.Error(t, s.RepairSection(6))
	_, err := s.DispatchTrain(9, 0)
	assert.Error(t, err)
}

func TestBatteryOverride(t *testing.T) {
	s := newTestSimulator(t, &recorder{})

	active, err := s.ToggleBatteryOverride(3)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, s.Status().Motes[2].BatteryOverride)
	assert.True(t, s.Status().Motes[2].LEDs[mote.LEDRed.String()])

	require.NoError(t, s.RunFor(30*time.Second))
	for _, r := range s.Routes() {
		if r.ID == 3 {
			assert.Zero(t, r.Battery, "override should advertise an empty battery")
		}
	}

	active, err = s.ToggleBatteryOverride(3)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = s.ToggleBatteryOverride(6)
	assert.ErrorIs(t, err, mote.ErrNotFieldMote)
	_, err = s.ToggleBatteryOverride(7)
	assert.ErrorIs(t, err, ErrUnknownMote)
	_, err = s.ToggleBatteryOverride(0)
	assert.ErrorIs(t, err, ErrUnknownMote)
}

func TestApplyScenario(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, rec)
	sc, err := scenario.Resolve("train-pass")
	require.NoError(t, err)
	require.NoError(t, s.ApplyScenario(sc))
	require.NoError(t, s.RunFor(4*time.Minute))

	arrival := false
	for _, r := range rec.statuses {
		arrival = arrival || r.TrainArrival
	}
	assert.True(t, arrival)

	var types []string
	for _, e := range s.Journal() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "scenario")
	assert.Contains(t, types, "train")
	assert.Contains(t, types, "window")
}

func TestApplyScenarioRejectsInvalid(t *testing.T) {
	s := newTestSimulator(t, &recorder{})
	sc := &scenario.Scenario{Name: "bad", Actions: []scenario.Action{{At: time.Second, Kind: "derail"}}}
	assert.ErrorIs(t, s.ApplyScenario(sc), scenario.ErrInvalidScenario)
}

func TestStatusOnlyWriter(t *testing.T) {
	w := &statusOnly{}
	s := newTestSimulator(t, w)
	require.NoError(t, s.RunFor(2*time.Minute))
	assert.Len(t, w.rows, 2)
}

func TestWriterErrorsDoNotStopTheRun(t *testing.T) {
	w := &statusOnly{err: errors.New("sink down")}
	s := newTestSimulator(t, w)
	require.NoError(t, s.RunFor(2*time.Minute))
	assert.Len(t, w.rows, 2)
	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, 2, last.Window)
}

func TestStatusSnapshot(t *testing.T) {
	s := newTestSimulator(t, &recorder{})
	require.NoError(t, s.RunFor(90*time.Second))
	st := s.Status()
	assert.Equal(t, "test-run", st.RunID)
	assert.InDelta(t, 90, st.SimSeconds, 0.001)
	assert.Equal(t, 1, st.Windows)
	require.Len(t, st.Motes, 6)
	assert.Len(t, st.Pending, 6)
	require.NotNil(t, st.Last)
	for i, m := range st.Motes {
		assert.Equal(t, i+1, m.ID)
		assert.InDelta(t, float64(i)*10, m.PositionM, 0.001)
		assert.Positive(t, m.FramesSent)
		assert.Len(t, m.Links, 6)
	}
}

func TestRunAcceptsOperationsWhileRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := newTestSimulator(t, &recorder{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 1) }()

	require.Eventually(t, func() bool {
		return errors.Is(s.RunFor(0), ErrRunning)
	}, 2*time.Second, 10*time.Millisecond)

	_, err := s.DispatchTrain(0, 0)
	require.NoError(t, err)
	trains := s.Status().Trains
	require.Len(t, trains, 1)
	assert.Equal(t, s.Config().Track.TrainSpeedMPS, trains[0].SpeedMPS)
	assert.ErrorIs(t, s.Run(ctx, 1), ErrRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunUntilStopsAtLimit(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, rec)
	require.NoError(t, s.RunUntil(context.Background(), 0, 2*time.Minute))
	assert.Equal(t, 2*time.Minute, s.Now())
	assert.Len(t, rec.statuses, 2)
}

func TestSeededRunsAreReproducible(t *testing.T) {
	run := func() []string {
		cfg := config.Default()
		rec := &recorder{}
		s, err := NewSimulator(cfg, rec, WithLogger(testLogger()),
			WithGenerator(telemetry.NewGenerator("seeded", time.Unix(0, 0))))
		require.NoError(t, err)
		require.NoError(t, s.RunFor(30*time.Second))
		_, err = s.DispatchTrain(1, 0)
		require.NoError(t, err)
		require.NoError(t, s.RunFor(2*time.Minute))
		var out []string
		for _, r := range rec.statuses {
			out = append(out, r.FlagString()+"/"+r.FaultedString())
		}
		return out
	}
	assert.Equal(t, run(), run())
}
