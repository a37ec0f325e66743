package mote

// LinkEstimator keeps a smoothed RSSI per neighbour. Slots are fixed at
// construction and never removed.
type LinkEstimator struct {
	ewma []int16
}

// NewLinkEstimator creates a table for motes 1..n, every slot starting at the
// pessimistic initial value.
func NewLinkEstimator(n int, initial int16) *LinkEstimator {
	l := &LinkEstimator{ewma: make([]int16, n)}
	for i := range l.ewma {
		l.ewma[i] = initial
	}
	return l
}

// Observe folds one reception into the neighbour's average with weight 0.5.
// Unknown neighbours are ignored and reported as false.
func (l *LinkEstimator) Observe(neighbor NodeID, rssi int16) bool {
	i, ok := l.index(neighbor)
	if !ok {
		return false
	}
	l.ewma[i] = int16((int32(l.ewma[i]) + int32(rssi)) / 2)
	return true
}

// RSSI returns the smoothed value for a neighbour.
func (l *LinkEstimator) RSSI(neighbor NodeID) int16 {
	i, ok := l.index(neighbor)
	if !ok {
		return 0
	}
	return l.ewma[i]
}

// Snapshot returns a copy of the table indexed by address-1.
func (l *LinkEstimator) Snapshot() []int16 {
	out := make([]int16, len(l.ewma))
	copy(out, l.ewma)
	return out
}

func (l *LinkEstimator) index(n NodeID) (int, bool) {
	if n == NoNode || int(n) > len(l.ewma) {
		return 0, false
	}
	return int(n) - 1, true
}
