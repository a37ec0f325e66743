package mote

import "fmt"

// SectionStatus is the health of one track section in a window.
type SectionStatus struct {
	ID     int  `json:"id"`
	Faulty bool `json:"faulty"`
}

// WindowReport is the outcome of one aggregation window.
type WindowReport struct {
	Flags        []bool          `json:"flags"`
	TrainArrival bool            `json:"train_arrival"`
	Sections     []SectionStatus `json:"sections"`
}

// Faulted lists the IDs of faulty sections in ascending order.
func (r WindowReport) Faulted() []int {
	var ids []int
	for _, s := range r.Sections {
		if s.Faulty {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// ArrivalValue is the 0/1 form of TrainArrival used on the serial link.
func (r WindowReport) ArrivalValue() int {
	if r.TrainArrival {
		return 1
	}
	return 0
}

// Detect runs the breakage algorithm over one window of flags. Flags are
// ordered by mote address. Each mote is compared with the one two positions
// further along; a mismatch marks section i+2 faulty, where i is the index of
// the first mote of the pair.
func Detect(flags []bool) WindowReport {
	r := WindowReport{Flags: make([]bool, len(flags))}
	copy(r.Flags, flags)
	for _, f := range flags {
		if f {
			r.TrainArrival = true
			break
		}
	}
	for i := 0; i+2 < len(flags); i++ {
		r.Sections = append(r.Sections, SectionStatus{ID: i + 2, Faulty: flags[i] != flags[i+2]})
	}
	return r
}

// VibrationWindow accumulates which motes felt vibration during the current
// aggregation window. Storage is fixed and reused across windows.
type VibrationWindow struct {
	flags []bool
}

func NewVibrationWindow(n int) *VibrationWindow {
	return &VibrationWindow{flags: make([]bool, n)}
}

// Mark sets the flag for a mote address. Repeated marks are idempotent.
func (w *VibrationWindow) Mark(source NodeID) error {
	if source == NoNode || int(source) > len(w.flags) {
		return fmt.Errorf("%w: %d", ErrUnknownSource, source)
	}
	w.flags[source-1] = true
	return nil
}

// Flags returns a copy of the current window.
func (w *VibrationWindow) Flags() []bool {
	out := make([]bool, len(w.flags))
	copy(out, w.flags)
	return out
}

// Close evaluates the window and clears it for the next one.
func (w *VibrationWindow) Close() WindowReport {
	r := Detect(w.flags)
	clear(w.flags)
	return r
}
