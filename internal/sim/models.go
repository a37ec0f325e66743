package sim

import (
	"math"
	"math/rand"
	"time"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/mote"
	"railwsn-sim/internal/sched"
)

const adcMax = 4095

// vibrationSensor models the accelerometer: the reading swings either side of
// the resting value by the train-induced amplitude, plus noise. A bad read is
// just a random code, the firmware has no separate error path.
type vibrationSensor struct {
	cfg       config.Sensor
	amplitude func() float64
	rng       *rand.Rand
	up        bool
}

func (v *vibrationSensor) SampleVibration() uint16 {
	if v.cfg.ErrorRate > 0 && v.rng.Float64() < v.cfg.ErrorRate {
		return uint16(v.rng.Intn(adcMax + 1))
	}
	v.up = !v.up
	swing := float64(v.cfg.Amplitude) * v.amplitude()
	if !v.up {
		swing = -swing
	}
	x := float64(v.cfg.RestValue) + swing
	if v.cfg.NoiseSigma > 0 {
		x += v.rng.NormFloat64() * v.cfg.NoiseSigma
	}
	return uint16(math.Round(math.Min(math.Max(x, 0), adcMax)))
}

// cell drains per transmission and with uptime.
type cell struct {
	initial float64
	cfg     config.Battery
	now     func() time.Duration
	sent    func() int
}

// Level is the remaining charge in percent.
func (c *cell) Level() float64 {
	l := c.initial - c.cfg.DrainPerTx*float64(c.sent()) - c.cfg.DrainPerHour*c.now().Hours()
	return math.Max(l, 0)
}

func (c *cell) ReadBattery() uint16 {
	return uint16(math.Round(c.Level()))
}

// leds records indicator state for display.
type leds map[mote.LED]bool

func (l leds) SetIndicator(led mote.LED, on bool) { l[led] = on }

// timers runs mote callbacks on the scheduler loop.
type timers struct {
	s *sched.Scheduler
}

func (t timers) Every(period, jitter time.Duration, fn func()) {
	t.s.Every(period, jitter, fn)
}

func (t timers) After(d time.Duration, fn func()) mote.Timer {
	return t.s.After(d, fn)
}
