// Operator TUI for a tracking session, rendered with bubbletea.
package console

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/tracker"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// snapshotMsg carries an entry update into the model.
type snapshotMsg struct{ snap fleet.Snapshot }

// logMsg carries a mission event line for the viewport.
type logMsg struct{ line string }

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
	colorWhite   = "\x1b[37m"
)

// entryPalette maps a fleet color index to an ANSI color. Its length matches
// the default registry palette so markers and TUI rows agree.
var entryPalette = []string{colorRed, colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan, colorGray, colorWhite}

func entryColor(idx int) string {
	if idx < 0 {
		idx = 0
	}
	return entryPalette[idx%len(entryPalette)]
}

// Console renders session updates in an alternate-screen TUI.
type Console struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool

	mu        sync.Mutex
	seenEvent map[string]int
}

// New starts the TUI program and subscribes it to session updates. When the
// operator quits the TUI, the process receives an interrupt so the rest of
// the console shuts down too.
func New(session *tracker.Session) *Console {
	c := &Console{done: make(chan struct{}), seenEvent: make(map[string]int)}
	c.sendSignal.Store(true)
	p := tea.NewProgram(newModel(session), tea.WithAltScreen())
	c.program = p
	session.OnUpdate(c.push)
	go func() {
		_, _ = p.Run()
		close(c.done)
		if c.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return c
}

// push forwards a snapshot and any mission events not yet shown.
func (c *Console) push(snap fleet.Snapshot) {
	c.program.Send(snapshotMsg{snap: snap})
	c.mu.Lock()
	seen := c.seenEvent[snap.ID]
	if seen > len(snap.Events) {
		seen = 0
	}
	fresh := snap.Events[seen:]
	c.seenEvent[snap.ID] = len(snap.Events)
	c.mu.Unlock()
	for _, ev := range fresh {
		c.program.Send(logMsg{line: eventLine(snap, ev)})
	}
}

func eventLine(snap fleet.Snapshot, ev fleet.Event) string {
	kindColor := colorGreen
	switch ev.Kind {
	case fleet.EventLaunch:
		kindColor = colorCyan
	case fleet.EventLand:
		kindColor = colorMagenta
	}
	return fmt.Sprintf("%s[%s]%s %s%s%s %s%s%s %s",
		colorGray, ev.Time.Format(time.RFC3339), colorReset,
		entryColor(snap.ColorIndex), snap.Name, colorReset,
		kindColor, ev.Kind, colorReset,
		ev.Detail)
}

// Close shuts down the TUI program and waits for cleanup.
func (c *Console) Close() error {
	c.sendSignal.Store(false)
	if c.program != nil {
		c.program.Send(tea.Quit())
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}
