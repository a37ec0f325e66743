package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"railwsn-sim/internal/config"
	"railwsn-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the main viewport.
type logMsg struct{ line string }

// eventMsg carries a vibration event line.
type eventMsg struct{ line string }

// windowMsg carries a closed gateway window.
type windowMsg struct{ telemetry.TrackStatusRow }

// stateMsg carries network counters for the last window.
type stateMsg struct{ telemetry.NetworkStateRow }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

const (
	maxLogLines         = 1000
	maxSectionHeightPct = 0.25
)

// TUIWriter renders track activity using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.Config) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements StatusWriter.
func (w *TUIWriter) Write(row telemetry.TrackStatusRow) error {
	verdict := fmt.Sprintf("%sHEALTHY%s", colorGreen, colorReset)
	if len(row.Faulted) > 0 {
		verdict = fmt.Sprintf("%sFAULTED %s%s", colorRed, row.FaultedString(), colorReset)
	}
	line := fmt.Sprintf("%s[%s]%s %sWINDOW %d%s %sflags=%s%s %strain=%t%s %s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, row.Window, colorReset,
		colorCyan, row.FlagString(), colorReset,
		colorYellow, row.TrainArrival, colorReset,
		verdict)
	w.program.Send(logMsg{line: line})
	w.program.Send(windowMsg{row})
	return nil
}

// WriteVibration implements EventWriter.
func (w *TUIWriter) WriteVibration(row telemetry.VibrationRow) error {
	c, ok := actionColors[row.Action]
	if !ok {
		c = colorGray
	}
	line := fmt.Sprintf("%s%7.1fs%s mote=%d %s%s%s source=%d value=%d",
		colorGray, row.SimSeconds, colorReset,
		row.Mote,
		c, row.Action, colorReset,
		row.Source, row.Value)
	if row.Peer != 0 {
		line += fmt.Sprintf(" peer=%d", row.Peer)
	}
	w.program.Send(eventMsg{line: line})
	return nil
}

// WriteRoute implements RouteWriter. Only next hop changes are shown.
func (w *TUIWriter) WriteRoute(row telemetry.RouteRow) error {
	if !row.Changed {
		return nil
	}
	line := fmt.Sprintf("%s%7.1fs%s %sROUTE%s mote=%d next_hop=%d via=%d cost=%d battery=%d",
		colorGray, row.SimSeconds, colorReset,
		colorMagenta, colorReset,
		row.Mote, row.NextHop, row.From, row.Cost, row.Battery)
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteState implements StateWriter.
func (w *TUIWriter) WriteState(row telemetry.NetworkStateRow) error {
	w.program.Send(stateMsg{NetworkStateRow: row})
	return nil
}

// WriteBatch outputs multiple status rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.TrackStatusRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteVibrations outputs multiple vibration rows.
func (w *TUIWriter) WriteVibrations(rows []telemetry.VibrationRow) error {
	for _, r := range rows {
		_ = w.WriteVibration(r)
	}
	return nil
}

// WriteRoutes outputs multiple route rows.
func (w *TUIWriter) WriteRoutes(rows []telemetry.RouteRow) error {
	for _, r := range rows {
		_ = w.WriteRoute(r)
	}
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg          *config.Config
	table        table.Model
	vp           viewport.Model
	evVP         viewport.Model
	logs         []string
	evLogs       []string
	last         *telemetry.TrackStatusRow
	state        telemetry.NetworkStateRow
	faultWindows int
	admin        bool
	wrap         bool
	autoscroll   bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func newTUIModel(cfg *config.Config) tuiModel {
	if cfg == nil {
		cfg = config.Default()
	}
	n := cfg.Network
	cols := []table.Column{
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 10},
		{Title: "Config", Width: 20},
		{Title: "Value", Width: 10},
	}
	rows := []table.Row{
		{"Motes", fmt.Sprintf("%d", n.Motes), "Gateway", fmt.Sprintf("%d", n.Gateway)},
		{"Spacing (m)", fmt.Sprintf("%.0f", cfg.Radio.SpacingM), "Communication Loss", fmt.Sprintf("%.2f", cfg.Radio.CommunicationLoss)},
		{"Advertisement", n.AdvertisementPeriod.String(), "Window", n.AggregationWindow.String()},
		{"Train Speed (m/s)", fmt.Sprintf("%.0f", cfg.Track.TrainSpeedMPS), "Train Length (m)", fmt.Sprintf("%.0f", cfg.Track.TrainLengthM)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		evVP:       viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.evVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.table.View()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshEvents()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.evVP.GotoBottom()
			}
			return m, nil
		case "h", "?":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
				m.evVP.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
				m.evVP.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
				m.evVP.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
				m.evVP.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				m.evVP, _ = m.evVP.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = appendCapped(m.logs, msg.line)
		m.refreshViewport()
	case eventMsg:
		m.evLogs = appendCapped(m.evLogs, msg.line)
		m.updateViewportHeight()
		m.refreshEvents()
		m.refreshViewport()
	case windowMsg:
		row := msg.TrackStatusRow
		m.last = &row
		if len(row.Faulted) > 0 {
			m.faultWindows++
		}
	case stateMsg:
		m.state = msg.NetworkStateRow
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func appendCapped(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return lines
}

func (m *tuiModel) updateViewportHeight() {
	evLines := len(m.evLogs)
	if evLines == 0 {
		evLines = 1
	}
	if limit := m.maxSectionLines(); evLines > limit {
		evLines = limit
	}
	m.evVP.Height = evLines

	trackHeight := lipgloss.Height(m.renderTrack())
	bottomHeight := lipgloss.Height(m.renderBottom())
	h := m.height - m.headerHeight - trackHeight - 1 - m.evVP.Height - bottomHeight - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.evVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func wrapLines(lines []string, width int, wrap bool) string {
	if !wrap || width <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = wordwrap.String(l, width)
	}
	return strings.Join(out, "\n")
}

func (m *tuiModel) refreshViewport() {
	m.vp.SetContent(wrapLines(m.logs, m.vp.Width, m.wrap))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshEvents() {
	content := "none"
	if len(m.evLogs) > 0 {
		content = wrapLines(m.evLogs, m.evVP.Width, m.wrap)
	}
	m.evVP.SetContent(content)
	if m.autoscroll {
		m.evVP.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.header,
		divider,
		m.renderTrack(),
		divider,
		m.vp.View(),
		divider,
		"Vibration Events:",
		m.evVP.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

var (
	moteOn       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	moteOff      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	railHealthy  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	railFaulty   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	gatewayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

// renderTrack draws the motes of the last window as a line, with each
// section between two motes colored by its health.
func (m tuiModel) renderTrack() string {
	motes := m.cfg.Network.Motes
	var flags []bool
	faulty := map[int]bool{}
	if m.last != nil {
		flags = m.last.Flags
		for _, id := range m.last.Faulted {
			faulty[id] = true
		}
	}
	var track, labels strings.Builder
	for i := 1; i <= motes; i++ {
		if i > 1 {
			rail := railHealthy
			if faulty[i] {
				rail = railFaulty
			}
			track.WriteString(rail.Render("━━━"))
			labels.WriteString("   ")
		}
		style := moteOff
		if i-1 < len(flags) && flags[i-1] {
			style = moteOn
		}
		if i == m.cfg.Network.Gateway {
			style = gatewayStyle
		}
		track.WriteString(style.Render("●"))
		labels.WriteString(fmt.Sprintf("%d", i%10))
	}
	status := "no window yet"
	if m.last != nil {
		status = fmt.Sprintf("window %d train=%t", m.last.Window, m.last.TrainArrival)
		if len(m.last.Faulted) > 0 {
			status += " faulted=" + m.last.FaultedString()
		}
	}
	return fmt.Sprintf("Track  %s\n       %s\n%s", track.String(), labels.String(), status)
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	state := fmt.Sprintf("%sSTATE%s %sframes=%d/%d%s %sdropped=%d%s %sevents=%d%s %sroute_changes=%d%s %sfault_windows=%d%s",
		colorBlue, colorReset,
		colorGreen, m.state.FramesDelivered, m.state.FramesSent, colorReset,
		colorRed, m.state.FramesDropped, colorReset,
		colorYellow, m.state.EventsOriginated, colorReset,
		colorMagenta, m.state.RouteChanges, colorReset,
		colorCyan, m.faultWindows, colorReset)
	return fmt.Sprintf("%s | Admin UI %s | Wrap %s | Scroll %s | Help %s",
		state, indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle line wrap",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
