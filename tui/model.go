package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-phrase/config"
	"go-phrase/midi"
	"go-phrase/sequencer"
	"go-phrase/theme"
)

// maxPortEvents is how many port changes the footer keeps
const maxPortEvents = 3

type Model struct {
	Engine   *sequencer.Engine
	Watcher  *midi.Watcher // may be nil
	Theme    *theme.Theme
	quitting bool
	events   []string
}

type UpdateMsg struct{}

type PortEventMsg midi.PortEvent

func NewModel(engine *sequencer.Engine, watcher *midi.Watcher, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{Engine: engine, Watcher: watcher, Theme: th}
}

func ListenForUpdates(engine *sequencer.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Updates()
		return UpdateMsg{}
	}
}

func ListenForPorts(w *midi.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Engine), ListenForPorts(m.Watcher))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit

		case "p", " ":
			if m.Engine.Playing() {
				m.Engine.Stop()
				break
			}
			m.Engine.Group().StartRoots()
			if err := m.Engine.Play(nil, sequencer.DefaultPlayOptions()); err != nil {
				m.events = appendEvent(m.events, err.Error())
			}

		case "+", "=":
			m.Engine.SetBPM(m.Engine.BPM() + 5)

		case "-", "_":
			m.Engine.SetBPM(m.Engine.BPM() - 5)

		case "!":
			n := m.Engine.Panic()
			m.events = appendEvent(m.events, fmt.Sprintf("panic: %d note-offs", n))

		case "m":
			config.Update(func(o *config.Options) { o.Metronome = !o.Metronome })
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case PortEventMsg:
		kind := "output"
		if msg.Input {
			kind = "input"
		}
		if msg.Type == midi.PortAdded && m.Engine.Registry() != nil {
			m.Engine.Registry().Rescan()
		}
		m.events = appendEvent(m.events, fmt.Sprintf("%s %s %q", kind, msg.Type, msg.Name))
		return m, ListenForPorts(m.Watcher)
	}

	return m, nil
}

func appendEvent(events []string, e string) []string {
	events = append(events, e)
	if len(events) > maxPortEvents {
		events = events[len(events)-maxPortEvents:]
	}
	return events
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	o := config.Current()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	trackStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := "STOP"
	if m.Engine.Playing() {
		playState = "PLAY"
	}
	metro := ""
	if o.Metronome {
		metro = "  click"
	}
	header := headerStyle.Render(fmt.Sprintf("go-phrase  %s  %3.0fbpm  t:%6.2f%s",
		playState, m.Engine.BPM(), m.Engine.Time(), metro))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")

	for _, t := range m.Engine.Group().Priority() {
		last := t.Last()
		if last == nil && !t.Playing() {
			continue
		}
		state := "idle"
		switch {
		case t.Muted():
			state = "muted"
		case t.Playing():
			state = "play"
		}
		line := fmt.Sprintf("%-12s ch%-2d %-5s item %d/%d", t.Name, t.Channel()+1, state, t.Index(), len(t.Items()))
		if p := t.Parent(); p != nil {
			line += " sync:" + p.Name
		}
		out.WriteString("\n")
		out.WriteString(trackStyle.Render(line))
		out.WriteString("\n")
		out.WriteString(Roll(last, o.DisplayRange[0], o.DisplayRange[1], o.NoteDur, m.Theme))
		out.WriteString("\n")
	}

	if m.Watcher != nil {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("out: " + strings.Join(m.Watcher.Outputs(), ", ")))
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("in:  " + strings.Join(m.Watcher.Inputs(), ", ")))
	}
	for _, e := range m.events {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(e))
	}

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("p:play/stop  +/-:tempo  m:metronome  !:panic  q:quit"))
	return out.String()
}
