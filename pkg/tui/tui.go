// Package tui provides a terminal user interface for chordtokit
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mty/chordtokit/pkg/capture"
	"github.com/mty/chordtokit/pkg/trigger"
)

// Acid-inspired color scheme (303/acid aesthetic)
var (
	// Primary colors - acid green and silver
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(acidGreen).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateCapture
	StateLearn
	StateSingle
	StateSync
	StateSettings
	StateResult
)

// menu actions
type menuAction int

const (
	actionMode menuAction = iota
	actionUndo
	actionSettings
	actionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Mode        capture.Mode
	Action      menuAction
}

var menuItems = []MenuItem{
	{Title: "Capture chord", Description: "Play a chord on the keyboard and map it onto the four pads", Mode: capture.ModeChord},
	{Title: "Learn pads", Description: "Hit each pad once to teach the current pad-to-note mapping", Mode: capture.ModeLearn},
	{Title: "Single note", Description: "Hit a pad, then play the note it should trigger", Mode: capture.ModeSingle},
	{Title: "Sync from module", Description: "Wait for a kit dump sent from the module's front panel", Mode: capture.ModeSync},
	{Title: "Undo", Description: "Restore the mapping before the last change", Action: actionUndo},
	{Title: "Settings", Description: "Capture policy: duplicates, octave-down, timeout", Action: actionSettings},
	{Title: "Exit", Description: "Exit the application", Action: actionExit},
}

// timeoutSteps are the capture timeout choices the settings screen
// cycles through.
var timeoutSteps = []time.Duration{
	time.Second,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// tickMsg drives the engine poll loop
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model represents the TUI model
type Model struct {
	engine        *capture.Engine
	state         State
	menuIndex     int
	settingsIndex int
	spinner       spinner.Model
	result        string
	resultErr     error
	width         int
	height        int
}

// New creates a new TUI model around a capture engine
func New(engine *capture.Engine) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	return Model{
		engine:  engine,
		state:   StateMenu,
		spinner: s,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.engine.Tick()
		if m.isCaptureState() && m.engine.Mode() == capture.ModeIdle {
			// The active flow finished on its own.
			m.resultErr = m.engine.Err()
			m.result = m.describeOutcome()
			m.state = StateResult
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateSettings:
			return m.updateSettings(msg)
		case StateResult:
			return m.updateResult(msg)
		default:
			return m.updateActive(msg)
		}
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		item := menuItems[m.menuIndex]
		switch item.Action {
		case actionExit:
			return m, tea.Quit
		case actionSettings:
			m.state = StateSettings
			m.settingsIndex = 0
			return m, nil
		case actionUndo:
			if m.engine.Undo() {
				m.result = "Previous mapping restored."
				m.resultErr = nil
			} else {
				m.result = ""
				m.resultErr = fmt.Errorf("nothing to undo")
			}
			m.state = StateResult
			return m, nil
		}

		if err := m.engine.Activate(item.Mode); err != nil {
			m.result = ""
			m.resultErr = err
			m.state = StateResult
			return m, nil
		}
		m.state = stateForMode(item.Mode)
		return m, m.spinner.Tick
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateActive(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.engine.Deactivate()
		m.state = StateMenu
		return m, nil
	case "q", "ctrl+c":
		m.engine.Deactivate()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) isCaptureState() bool {
	switch m.state {
	case StateCapture, StateLearn, StateSingle, StateSync:
		return true
	}
	return false
}

// settings rows: 0 duplicates, 1 octave-down, 2 timeout
const settingsRows = 3

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.settingsIndex > 0 {
			m.settingsIndex--
		}
	case "down", "j":
		if m.settingsIndex < settingsRows-1 {
			m.settingsIndex++
		}
	case "enter", " ":
		policy := m.engine.Session().Policy()
		switch m.settingsIndex {
		case 0:
			policy.AllowDuplicates = !policy.AllowDuplicates
		case 1:
			policy.OctaveDownLowest = !policy.OctaveDownLowest
		case 2:
			policy.Timeout = nextTimeout(policy.Timeout)
		}
		m.engine.SetPolicy(policy)
	case "esc":
		m.state = StateMenu
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func nextTimeout(current time.Duration) time.Duration {
	for i, step := range timeoutSteps {
		if step == current {
			return timeoutSteps[(i+1)%len(timeoutSteps)]
		}
	}
	return timeoutSteps[0]
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.result = ""
		m.resultErr = nil
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func stateForMode(mode capture.Mode) State {
	switch mode {
	case capture.ModeChord:
		return StateCapture
	case capture.ModeLearn:
		return StateLearn
	case capture.ModeSingle:
		return StateSingle
	case capture.ModeSync:
		return StateSync
	}
	return StateMenu
}

func (m Model) describeOutcome() string {
	switch m.state {
	case StateCapture, StateSingle:
		if captured := m.engine.LastCaptured(); captured != nil {
			return "Pads now play " + formatMapping(captured)
		}
	case StateLearn:
		if learned := m.engine.LearnedMapping(); learned != nil {
			return "Pads respond as " + formatMapping(learned)
		}
	case StateSync:
		if slots := m.engine.Device().State(); slots != nil {
			return "Module state synced: " + formatMapping(slots)
		}
	}
	return ""
}

func formatMapping(slots []uint8) string {
	parts := make([]string, 0, len(slots))
	for i, n := range slots {
		parts = append(parts, fmt.Sprintf("%s=%s", trigger.SlotName(i), trigger.NoteName(n)))
	}
	return strings.Join(parts, "  ")
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateCapture:
		s.WriteString(m.viewCapture())
	case StateLearn:
		s.WriteString(m.viewLearn())
	case StateSingle:
		s.WriteString(m.viewSingle())
	case StateSync:
		s.WriteString(m.viewSync())
	case StateSettings:
		s.WriteString(m.viewSettings())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • esc: back • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(acidYellow).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	if slots := m.engine.Device().State(); slots != nil {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render("  " + formatMapping(slots)))
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewCapture() string {
	var s strings.Builder

	session := m.engine.Session()
	target := session.Policy().TargetCount

	s.WriteString(titleStyle.Render(" CAPTURE CHORD "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Play %d notes on the keyboard\n\n", m.spinner.View(), target))

	notes := session.Notes()
	for i := 0; i < target; i++ {
		if i < len(notes) {
			s.WriteString(successStyle.Render(fmt.Sprintf("  ● %s", trigger.NoteName(notes[i]))))
		} else {
			s.WriteString(menuStyle.Render("○ —"))
		}
		s.WriteString("\n")
	}

	s.WriteString(statusStyle.Render(fmt.Sprintf("  %d of %d", session.Progress(), target)))

	return boxStyle.Render(s.String())
}

func (m Model) viewLearn() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" LEARN PADS "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Hit each pad once, in order\n\n", m.spinner.View()))

	progress := m.engine.LearnProgress()
	for i := 0; i < trigger.SlotCount; i++ {
		if i < len(progress) {
			s.WriteString(successStyle.Render(fmt.Sprintf("  ● pad %d: %s", i+1, trigger.NoteName(progress[i]))))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("○ pad %d", i+1)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewSingle() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SINGLE NOTE "))
	s.WriteString("\n\n")

	if slot, ok := m.engine.PendingSlot(); ok {
		s.WriteString(fmt.Sprintf("%s Pad: %s\n", m.spinner.View(), trigger.SlotName(slot)))
		s.WriteString(statusStyle.Render("  Now play the new note on the keyboard"))
	} else {
		s.WriteString(fmt.Sprintf("%s Hit the pad you want to reassign\n", m.spinner.View()))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewSync() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SYNC FROM MODULE "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Waiting for a kit dump...\n", m.spinner.View()))
	s.WriteString(statusStyle.Render("  Send the current kit from the module's front panel"))

	return boxStyle.Render(s.String())
}

func (m Model) viewSettings() string {
	var s strings.Builder

	policy := m.engine.Session().Policy()
	rows := []string{
		fmt.Sprintf("Allow duplicate notes   %s", onOff(policy.AllowDuplicates)),
		fmt.Sprintf("Octave-down lowest      %s", onOff(policy.OctaveDownLowest)),
		fmt.Sprintf("Capture timeout         %s", policy.Timeout),
	}

	s.WriteString(titleStyle.Render(" SETTINGS "))
	s.WriteString("\n\n")
	for i, row := range rows {
		if i == m.settingsIndex {
			s.WriteString(selectedStyle.Render("▸ " + row))
		} else {
			s.WriteString(menuStyle.Render("  " + row))
		}
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("enter: toggle • esc: back"))

	return boxStyle.Render(s.String())
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.resultErr != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.resultErr.Error())))
	} else {
		s.WriteString(titleStyle.Render(" DONE "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ " + orDefault(m.result, "Complete")))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func asciiLogo() string {
	logo := `
   ____ _   _  ___  ____  ____ _____ ___  _  ____ _____
  / ___| | | |/ _ \|  _ \|  _ \_   _/ _ \| |/ /_ _|_   _|
 | |   | |_| | | | | |_) | | | || || | | | ' / | |  | |
 | |___|  _  | |_| |  _ <| |_| || || |_| | . \ | |  | |
  \____|_| |_|\___/|_| \_\____/ |_| \___/|_|\_\___| |_|
`
	return lipgloss.NewStyle().Foreground(acidGreen).Render(logo)
}

// Run starts the TUI application
func Run(engine *capture.Engine) error {
	p := tea.NewProgram(New(engine), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
