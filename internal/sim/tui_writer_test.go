package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	row := telemetry.TrackStatusRow{Window: 3, Faulted: []int{4}, Flags: []bool{true, true, false}, Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(row); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lm, ok := p.msgs[0].(logMsg); !ok || !strings.Contains(lm.line, "FAULTED 4") {
		t.Fatalf("expected faulted logMsg, got %#v", p.msgs[0])
	}
	if _, ok := p.msgs[1].(windowMsg); !ok {
		t.Fatalf("expected windowMsg, got %T", p.msgs[1])
	}
	if err := w.WriteState(telemetry.NetworkStateRow{FramesSent: 1}); err != nil {
		t.Fatalf("state: %v", err)
	}
	if _, ok := p.msgs[2].(stateMsg); !ok {
		t.Fatalf("expected stateMsg, got %T", p.msgs[2])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[3].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[3])
	}
	if err := w.WriteVibration(telemetry.VibrationRow{Mote: 2, Source: 2, Action: "originated", Peer: 3}); err != nil {
		t.Fatalf("vibration: %v", err)
	}
	if em, ok := p.msgs[4].(eventMsg); !ok || !strings.Contains(em.line, "peer=3") {
		t.Fatalf("expected eventMsg, got %#v", p.msgs[4])
	}
	if err := w.WriteRoute(telemetry.RouteRow{Mote: 2, NextHop: 1}); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(p.msgs) != 5 {
		t.Fatalf("unchanged route should not be shown, got %d msgs", len(p.msgs))
	}
	if err := w.WriteRoutes([]telemetry.RouteRow{{Mote: 2, NextHop: 1, Changed: true}}); err != nil {
		t.Fatalf("routes: %v", err)
	}
	if _, ok := p.msgs[5].(logMsg); !ok {
		t.Fatalf("expected logMsg for route change, got %T", p.msgs[5])
	}
}

func TestWrapLines(t *testing.T) {
	lines := []string{"one two three four five six"}
	if got := wrapLines(lines, 10, false); strings.Contains(got, "\n") {
		t.Fatalf("unexpected wrap: %q", got)
	}
	got := wrapLines(lines, 10, true)
	if strings.Count(got, "\n") < 2 {
		t.Fatalf("expected wrapped lines, got %q", got)
	}
	for _, l := range strings.Split(got, "\n") {
		if len(l) > 10 {
			t.Fatalf("line %q longer than width", l)
		}
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if m.wrap {
		t.Fatalf("wrap not toggled back")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	m.vp.Height = 1
	m.vp.Width = 20
	mi, _ := m.Update(logMsg{line: "l1"})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "l2"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = mi.(tuiModel)
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if !m.autoscroll {
		t.Fatalf("autoscroll should be on")
	}
	if want := len(m.logs) - m.vp.Height; m.vp.YOffset != want {
		t.Fatalf("expected YOffset %d, got %d", want, m.vp.YOffset)
	}
}

func TestRenderTrack(t *testing.T) {
	cfg := config.Default()
	m := newTUIModel(cfg)
	if !strings.Contains(m.renderTrack(), "no window yet") {
		t.Fatalf("expected placeholder, got %q", m.renderTrack())
	}
	mi, _ := m.Update(windowMsg{telemetry.TrackStatusRow{Window: 7, TrainArrival: true, Faulted: []int{3, 4}, Flags: []bool{true, true, false}}})
	m = mi.(tuiModel)
	out := m.renderTrack()
	if !strings.Contains(out, "window 7 train=true faulted=3,4") {
		t.Fatalf("unexpected track: %q", out)
	}
	if strings.Count(out, "●") != cfg.Network.Motes {
		t.Fatalf("expected %d motes in %q", cfg.Network.Motes, out)
	}
	if m.faultWindows != 1 {
		t.Fatalf("fault windows = %d", m.faultWindows)
	}
	if !strings.Contains(m.View(), "Vibration Events:") {
		t.Fatalf("view missing events section")
	}
}
