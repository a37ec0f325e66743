package mote

import "time"

// indicatorBank owns one off-timer per LED. Re-triggering an LED that is
// already lit extends it instead of stacking timers.
type indicatorBank struct {
	out    Indicators
	clock  Timers
	timers [ledCount]Timer
}

func newIndicatorBank(out Indicators, clock Timers) *indicatorBank {
	if out == nil {
		out = nopIndicators{}
	}
	return &indicatorBank{out: out, clock: clock}
}

// Blink lights led for d.
func (b *indicatorBank) Blink(led LED, d time.Duration) {
	b.out.SetIndicator(led, true)
	if t := b.timers[led]; t != nil {
		t.Reset(d)
		return
	}
	b.timers[led] = b.clock.After(d, func() { b.out.SetIndicator(led, false) })
}

// Set drives led directly, without a timer.
func (b *indicatorBank) Set(led LED, on bool) {
	b.out.SetIndicator(led, on)
}
