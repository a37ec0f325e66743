// Package statusline writes and reads the gateway's serial status lines. The
// track display matches lines by substring, splits them on whitespace and
// takes the token after a lone "=", so the layout here is fixed.
package statusline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"railwsn-sim/internal/mote"
)

const (
	ClearingLine  = "Clearing Track ID Status"
	arrivalPrefix = "Train Arrival Detected ="
	faultedPrefix = "Faulted Track ID ="
	motePrefix    = "MoteID ="
)

// Write emits one window report in the order the display expects: the
// clearing line, the per-mote flags, arrival, one line per faulted section,
// then the health of every section.
func Write(w io.Writer, r mote.WindowReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, ClearingLine)
	for i, f := range r.Flags {
		fmt.Fprintf(bw, "MoteID = %d   Vibration = %d\n", i+1, b2i(f))
	}
	fmt.Fprintf(bw, "Train Arrival Detected = %d\n", r.ArrivalValue())
	for _, id := range r.Faulted() {
		fmt.Fprintf(bw, "Faulted Track ID = %d\n", id)
	}
	for _, s := range r.Sections {
		status := "HEALTHY"
		if s.Faulty {
			status = "FAULTY"
		}
		fmt.Fprintf(bw, "Track ID = %d   Health Status = %s\n", s.ID, status)
	}
	return bw.Flush()
}

// Format returns the lines Write would emit.
func Format(r mote.WindowReport) string {
	var sb strings.Builder
	_ = Write(&sb, r)
	return sb.String()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Display is what the track display shows after one window.
type Display struct {
	Flags        []bool `json:"flags,omitempty"`
	TrainArrival int    `json:"train_arrival"`
	Faulted      []int  `json:"faulted,omitempty"`
	// LastFaulted is the big "faulted track" readout: the last faulted ID seen.
	LastFaulted int `json:"last_faulted"`
}

// Faulty reports whether section id was flagged.
func (d Display) Faulty(id int) bool {
	for _, f := range d.Faulted {
		if f == id {
			return true
		}
	}
	return false
}

// ValueAfterEquals splits line on whitespace and parses the token following
// the last lone "=".
func ValueAfterEquals(line string) (int, bool) {
	fields := strings.Fields(line)
	val, ok := 0, false
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] != "=" {
			continue
		}
		if v, err := strconv.Atoi(fields[i+1]); err == nil {
			val, ok = v, true
		}
	}
	return val, ok
}

// Parser follows a serial stream the way the display does.
type Parser struct {
	cur     *Display
	windows []Display
}

// Feed consumes one line. Lines that are not status lines are ignored.
func (p *Parser) Feed(line string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.Contains(line, ClearingLine):
		p.flush()
		p.cur = &Display{}
	case p.cur == nil:
		return
	case strings.Contains(line, arrivalPrefix):
		if v, ok := ValueAfterEquals(line); ok {
			p.cur.TrainArrival = v
		}
	case strings.Contains(line, faultedPrefix):
		if v, ok := ValueAfterEquals(line); ok {
			p.cur.Faulted = append(p.cur.Faulted, v)
			p.cur.LastFaulted = v
		}
	case strings.HasPrefix(strings.TrimSpace(line), motePrefix):
		var id, v int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "MoteID = %d Vibration = %d", &id, &v); err == nil && id > 0 {
			for len(p.cur.Flags) < id {
				p.cur.Flags = append(p.cur.Flags, false)
			}
			p.cur.Flags[id-1] = v != 0
		}
	}
}

func (p *Parser) flush() {
	if p.cur != nil {
		p.windows = append(p.windows, *p.cur)
		p.cur = nil
	}
}

// Windows returns every completed window plus the one in progress.
func (p *Parser) Windows() []Display {
	out := append([]Display(nil), p.windows...)
	if p.cur != nil {
		out = append(out, *p.cur)
	}
	return out
}

// Parse reads a whole capture.
func Parse(r io.Reader) ([]Display, error) {
	var p Parser
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.Feed(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read status lines: %w", err)
	}
	return p.Windows(), nil
}
