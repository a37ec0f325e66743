package mote

import "testing"

func TestLinkEstimatorObserve(t *testing.T) {
	l := NewLinkEstimator(6, -50)

	if got := l.RSSI(3); got != -50 {
		t.Fatalf("initial RSSI = %d, want -50", got)
	}
	l.Observe(3, -40)
	if got := l.RSSI(3); got != -45 {
		t.Fatalf("after one sample RSSI = %d, want -45", got)
	}
	l.Observe(3, -40)
	// (-45 + -40) / 2 truncates toward zero
	if got := l.RSSI(3); got != -42 {
		t.Fatalf("after two samples RSSI = %d, want -42", got)
	}
	if got := l.RSSI(2); got != -50 {
		t.Errorf("untouched neighbour changed to %d", got)
	}
}

func TestLinkEstimatorBounds(t *testing.T) {
	l := NewLinkEstimator(3, -50)
	for _, n := range []NodeID{NoNode, 4, 200} {
		if l.Observe(n, -30) {
			t.Errorf("Observe(%d) accepted an address outside the table", n)
		}
	}
	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length %d, want 3", len(snap))
	}
	snap[0] = 0
	if l.RSSI(1) != -50 {
		t.Error("snapshot aliases internal storage")
	}
}
