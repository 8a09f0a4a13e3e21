package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/tracker"
)

const maxLogLines = 500

var (
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	reportStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type model struct {
	session *tracker.Session
	table   table.Model
	vp      viewport.Model

	entries map[string]fleet.Snapshot
	order   []string
	logs    []string

	wrap       bool
	autoscroll bool
	help       bool
	report     string
	status     string
	height     int
}

func newModel(session *tracker.Session) model {
	cols := []table.Column{
		{Title: "Drone", Width: 16},
		{Title: "Mode", Width: 9},
		{Title: "Prog", Width: 6},
		{Title: "Lat", Width: 10},
		{Title: "Lng", Width: 10},
		{Title: "Alt m", Width: 6},
		{Title: "Spd", Width: 6},
		{Title: "Batt", Width: 5},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(6), table.WithFocused(true))
	return model{
		session:    session,
		table:      t,
		vp:         viewport.New(0, 0),
		entries:    make(map[string]fleet.Snapshot),
		autoscroll: true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.vp.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case snapshotMsg:
		m.applySnapshot(msg.snap)
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help {
		switch msg.String() {
		case "?", "h", "esc":
			m.help = false
		}
		return m, nil
	}
	if m.report != "" {
		switch msg.String() {
		case "r", "esc", "q":
			m.report = ""
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		m.table.MoveDown(1)
		m.selectCursorEntry()
		return m, nil
	case "k", "up":
		m.table.MoveUp(1)
		m.selectCursorEntry()
		return m, nil
	case "w":
		m.wrap = !m.wrap
		m.refreshViewport()
		return m, nil
	case "s":
		m.autoscroll = !m.autoscroll
		if m.autoscroll {
			m.vp.GotoBottom()
		}
		return m, nil
	case "r":
		m.showReport()
		return m, nil
	case "x":
		m.detachSelected()
		return m, nil
	case "R":
		m.restartSelected()
		return m, nil
	case "h", "?":
		m.help = true
		return m, nil
	}
	if !m.autoscroll {
		switch msg.String() {
		case "pgdown", "ctrl+n":
			m.vp.LineDown(10)
		case "pgup", "ctrl+p":
			m.vp.LineUp(10)
		}
	}
	return m, nil
}

func (m *model) applySnapshot(snap fleet.Snapshot) {
	if _, ok := m.entries[snap.ID]; !ok {
		m.order = append(m.order, snap.ID)
	}
	m.entries[snap.ID] = snap
	m.rebuildTable()
}

func (m *model) rebuildTable() {
	rows := make([]table.Row, 0, len(m.order))
	for _, id := range m.order {
		s := m.entries[id]
		rows = append(rows, table.Row{
			s.Name,
			string(s.Mode),
			fmt.Sprintf("%.0f%%", s.ProgressPct()),
			fmt.Sprintf("%.5f", s.Telemetry.Lat),
			fmt.Sprintf("%.5f", s.Telemetry.Lng),
			fmt.Sprintf("%.0f", s.Telemetry.AltitudeM),
			fmt.Sprintf("%.0f", s.Telemetry.SpeedKmh),
			fmt.Sprintf("%.0f", s.Telemetry.BatteryPct),
		})
	}
	m.table.SetRows(rows)
}

func (m *model) selectedID() (string, bool) {
	cur := m.table.Cursor()
	if cur < 0 || cur >= len(m.order) {
		return "", false
	}
	return m.order[cur], true
}

func (m *model) selectCursorEntry() {
	id, ok := m.selectedID()
	if !ok || m.session == nil {
		return
	}
	if err := m.session.SetActive(id); err != nil {
		m.status = err.Error()
	}
}

func (m *model) showReport() {
	id, ok := m.selectedID()
	if !ok || m.session == nil {
		return
	}
	rec, err := m.session.Report(id)
	if err != nil {
		m.status = err.Error()
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Flight Record: %s\n\n", rec.Name)
	fmt.Fprintf(&b, "Status         %s\n", rec.Status)
	fmt.Fprintf(&b, "Duration       %s\n", rec.DurationLabel)
	fmt.Fprintf(&b, "Waypoints      %d/%d\n", rec.WaypointsVisited, rec.WaypointTotal)
	fmt.Fprintf(&b, "Distance       %.0f m\n", rec.PlannedDistanceM)
	fmt.Fprintf(&b, "Max altitude   %.0f m\n", rec.MaxPlannedAltM)
	fmt.Fprintf(&b, "Avg speed      %.1f km/h\n", rec.AvgSpeedKmh)
	fmt.Fprintf(&b, "Peak speed     %.1f km/h\n", rec.PeakSpeedKmh)
	fmt.Fprintf(&b, "Battery        %.0f%%\n\n", rec.FinalBatteryPct)
	b.WriteString("r/esc to close")
	m.report = reportStyle.Render(b.String())
}

func (m *model) detachSelected() {
	id, ok := m.selectedID()
	if !ok || m.session == nil {
		return
	}
	if err := m.session.Detach(id); err != nil {
		m.status = err.Error()
		return
	}
	m.removeEntry(id)
}

func (m *model) restartSelected() {
	id, ok := m.selectedID()
	if !ok || m.session == nil {
		return
	}
	if err := m.session.Restart(id); err != nil {
		m.status = err.Error()
	}
}

func (m *model) removeEntry(id string) {
	delete(m.entries, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.rebuildTable()
}

func (m *model) updateViewportHeight() {
	h := m.height - m.table.Height() - lipgloss.Height(m.renderDetail()) - 6
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
}

func (m *model) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return m.renderHelp()
	}
	if m.report != "" {
		return m.report
	}
	divider := dividerStyle.Render(strings.Repeat("─", max(m.vp.Width, 1)))
	sections := []string{
		m.table.View(),
		divider,
		m.renderDetail(),
		divider,
		"Events:",
		m.vp.View(),
		divider,
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

// renderDetail shows the selected entry's mission as a waypoint tree with the
// reached waypoints marked.
func (m model) renderDetail() string {
	id, ok := m.selectedID()
	if !ok {
		return "No drones tracked. Attach one via the HTTP API."
	}
	s := m.entries[id]
	c := entryColor(s.ColorIndex)
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s (%s) progress %.0f%%", c, s.Name, colorReset, s.Mode, s.ProgressPct())
	if s.MissionComplete {
		b.WriteString(" ✓ complete")
	}
	b.WriteByte('\n')
	for i, wp := range s.Mission {
		prefix := "├─"
		if i == len(s.Mission)-1 {
			prefix = "└─"
		}
		mark := " "
		if m.reached(s, i) {
			mark = "●"
		}
		fmt.Fprintf(&b, "%s %s %s (%s) alt=%.0fm\n", prefix, mark, wp.Label, wp.Role, wp.AltitudeM)
	}
	if m.status != "" {
		fmt.Fprintf(&b, "%s%s%s\n", colorYellow, m.status, colorReset)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) reached(s fleet.Snapshot, i int) bool {
	if s.MissionComplete {
		return true
	}
	if s.Mode == fleet.ModeLive {
		for _, v := range s.Visited {
			if v == i {
				return true
			}
		}
		return false
	}
	return i <= s.SegmentIndex
}

func (m model) renderFooter() string {
	on := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
	off := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("●")
	wrapInd, scrollInd := off, off
	if m.wrap {
		wrapInd = on
	}
	if m.autoscroll {
		scrollInd = on
	}
	return fmt.Sprintf("%d tracked | Wrap %s | Scroll %s | r report | x detach | R restart | ? help | q quit",
		len(m.order), wrapInd, scrollInd)
}

func (m model) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" j/k or up/down  select drone",
		" r  flight record for selected drone",
		" R  restart selected simulated flight",
		" x  detach selected drone",
		" w  toggle event wrap",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" pgdown/pgup  scroll events",
	}
	return strings.Join(lines, "\n")
}
