package statusline

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"railwsn-sim/internal/mote"
)

func TestWriteVerbatim(t *testing.T) {
	r := mote.Detect([]bool{true, false, false, true, false, true})
	want := strings.Join([]string{
		"Clearing Track ID Status",
		"MoteID = 1   Vibration = 1",
		"MoteID = 2   Vibration = 0",
		"MoteID = 3   Vibration = 0",
		"MoteID = 4   Vibration = 1",
		"MoteID = 5   Vibration = 0",
		"MoteID = 6   Vibration = 1",
		"Train Arrival Detected = 1",
		"Faulted Track ID = 2",
		"Faulted Track ID = 3",
		"Track ID = 2   Health Status = FAULTY",
		"Track ID = 3   Health Status = FAULTY",
		"Track ID = 4   Health Status = HEALTHY",
		"Track ID = 5   Health Status = HEALTHY",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, Format(r)); diff != "" {
		t.Errorf("status lines (-want +got):\n%s", diff)
	}
}

func TestWriteQuietWindow(t *testing.T) {
	out := Format(mote.Detect(make([]bool, 6)))
	if !strings.Contains(out, "Train Arrival Detected = 0\n") {
		t.Errorf("missing arrival line:\n%s", out)
	}
	if strings.Contains(out, "Faulted") {
		t.Errorf("quiet window reported a fault:\n%s", out)
	}
}

func TestValueAfterEquals(t *testing.T) {
	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{"Train Arrival Detected = 1", 1, true},
		{"Faulted Track ID = 4", 4, true},
		{"Track ID = 3   Health Status = FAULTY", 3, true},
		{"Train Arrival Detected =1", 0, false},
		{"no value here", 0, false},
	}
	for _, tt := range tests {
		got, ok := ValueAfterEquals(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ValueAfterEquals(%q) = %d, %v; want %d, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Unicast message received from 0x40, noise before the first window\n")
	sb.WriteString("Faulted Track ID = 9\n")
	_ = Write(&sb, mote.Detect([]bool{true, false, false, true, false, true}))
	sb.WriteString("Processing Completed. \r\n")
	_ = Write(&sb, mote.Detect(make([]bool, 6)))

	got, err := Parse(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	want := []Display{
		{
			Flags:        []bool{true, false, false, true, false, true},
			TrainArrival: 1,
			Faulted:      []int{2, 3},
			LastFaulted:  3,
		},
		{Flags: make([]bool, 6)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !got[0].Faulty(3) || got[0].Faulty(4) {
		t.Error("Faulty lookup mismatch")
	}
}
