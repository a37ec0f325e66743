// Package train models the track the motes are mounted on: trains running
// along it, and rail breaks that stop them and block vibration.
package train

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Engine maintains and moves simulated trains.
type Engine struct {
	cfg    Config
	breaks map[int]bool
	Trains []*Train
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, breaks: make(map[int]bool)}
}

// Length is the distance from mote 1 to the last mote.
func (e *Engine) Length() float64 {
	return float64(e.cfg.Motes-1) * e.cfg.SpacingM
}

// MotePosition returns where mote addr sits on the track.
func (e *Engine) MotePosition(addr int) float64 {
	return float64(addr-1) * e.cfg.SpacingM
}

// breakPosition is midway between mote k and mote k+1.
func (e *Engine) breakPosition(k int) float64 {
	return (float64(k) - 0.5) * e.cfg.SpacingM
}

func (e *Engine) checkSection(k int) error {
	if k < 1 || k >= e.cfg.Motes {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidSection, k, e.cfg.Motes-1)
	}
	return nil
}

// Break breaks the rail between mote k and mote k+1.
func (e *Engine) Break(k int) error {
	if err := e.checkSection(k); err != nil {
		return err
	}
	e.breaks[k] = true
	return nil
}

// Repair fixes the rail between mote k and mote k+1. Trains halted there
// move on.
func (e *Engine) Repair(k int) error {
	if err := e.checkSection(k); err != nil {
		return err
	}
	delete(e.breaks, k)
	pos := e.breakPosition(k)
	for _, t := range e.Trains {
		if t.Stopped && t.Position == pos {
			t.Stopped = false
		}
	}
	return nil
}

// Breaks lists broken sections in ascending order.
func (e *Engine) Breaks() []int {
	out := make([]int, 0, len(e.breaks))
	for k := range e.breaks {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Dispatch puts a train on the track at the end nearest mote from. A train
// starting at mote 1 runs up, any other start runs down.
func (e *Engine) Dispatch(from int, speed float64) (*Train, error) {
	if from < 1 || from > e.cfg.Motes {
		return nil, fmt.Errorf("%w: start mote %d", ErrInvalidSection, from)
	}
	if speed <= 0 {
		return nil, fmt.Errorf("train: speed must be positive, got %v", speed)
	}
	t := &Train{
		ID:        uuid.New().String(),
		Position:  e.MotePosition(from),
		LengthM:   e.cfg.TrainLengthM,
		Direction: Down,
		SpeedMPS:  speed,
	}
	if from == 1 {
		t.Direction = Up
	}
	e.Trains = append(e.Trains, t)
	return t, nil
}

// Step advances every moving train by dt seconds. Trains that reach a break
// stop on it; trains that leave the sensed stretch are removed.
func (e *Engine) Step(dt float64) {
	kept := e.Trains[:0]
	for _, t := range e.Trains {
		if !t.Stopped {
			next := t.Position + float64(t.Direction)*t.SpeedMPS*dt
			if k, ok := e.firstBreakBetween(t.Position, next); ok {
				next = e.breakPosition(k)
				t.Stopped = true
			}
			t.Position = next
		}
		if lo, hi := t.span(); hi < -e.cfg.VibrationRadiusM || lo > e.Length()+e.cfg.VibrationRadiusM {
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(e.Trains); i++ {
		e.Trains[i] = nil
	}
	e.Trains = kept
}

// firstBreakBetween finds the first break crossed when moving from a to b.
// A train sitting exactly on a break has already been stopped by it.
func (e *Engine) firstBreakBetween(a, b float64) (int, bool) {
	best, found := 0, false
	for k := range e.breaks {
		p := e.breakPosition(k)
		var crossed bool
		if b >= a {
			crossed = p > a && p <= b
		} else {
			crossed = p < a && p >= b
		}
		if !crossed {
			continue
		}
		if !found || math.Abs(p-a) < math.Abs(e.breakPosition(best)-a) {
			best, found = k, true
		}
	}
	return best, found
}

// blocked reports whether a break lies strictly between two points.
func (e *Engine) blocked(a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	for k := range e.breaks {
		if p := e.breakPosition(k); p > a && p < b {
			return true
		}
	}
	return false
}

// Amplitude is the relative vibration, 0..1, felt at pos, falling off with
// the distance to the nearest wagon. Only moving trains shake the rail and a
// break stops the vibration from carrying across.
func (e *Engine) Amplitude(pos float64) float64 {
	r := e.cfg.VibrationRadiusM
	if r <= 0 {
		return 0
	}
	peak := 0.0
	for _, t := range e.Trains {
		if t.Stopped {
			continue
		}
		lo, hi := t.span()
		near := math.Min(math.Max(pos, lo), hi)
		d := math.Abs(near - pos)
		if d > r || e.blocked(near, pos) {
			continue
		}
		if a := 1 - d/r; a > peak {
			peak = a
		}
	}
	return peak
}

// MoteAmplitude is Amplitude at mote addr.
func (e *Engine) MoteAmplitude(addr int) float64 {
	return e.Amplitude(e.MotePosition(addr))
}

// Snapshot copies the trains for reporting.
func (e *Engine) Snapshot() []Train {
	out := make([]Train, len(e.Trains))
	for i, t := range e.Trains {
		out[i] = *t
	}
	return out
}
