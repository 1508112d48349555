package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gregoryhbowler/sing-sub000/midi"
	"github.com/gregoryhbowler/sing-sub000/sequencer"
	"github.com/gregoryhbowler/sing-sub000/theme"
	"github.com/gregoryhbowler/sing-sub000/transpose"
	"github.com/gregoryhbowler/sing-sub000/widgets"
)

type page int

const (
	pageLanes page = iota
	pageTranspose
)

// maskRow is the cursor row below the six lanes.
const maskRow = int(sequencer.NumLanes)

type Model struct {
	Engine    *sequencer.Engine
	Transpose *transpose.Engine
	Clock     *transpose.StepClock
	Output    *midi.Output
	Watcher   *midi.Watcher
	Theme     *theme.Theme

	page     page
	stepCur  int // 0-15, shared by both pages
	rowCur   int // lanes page row: 0-5 lanes, 6 mask
	portMsg  string
	portLost bool
	quitting bool
}

type UpdateMsg struct{}

type PortEventMsg midi.WatchEvent

func NewModel(eng *sequencer.Engine, tr *transpose.Engine, clk *transpose.StepClock, out *midi.Output, w *midi.Watcher, th *theme.Theme) Model {
	return Model{
		Engine:    eng,
		Transpose: tr,
		Clock:     clk,
		Output:    out,
		Watcher:   w,
		Theme:     th,
	}
}

func ListenForUpdates(e *sequencer.Engine) tea.Cmd {
	return func() tea.Msg {
		<-e.Updates()
		return UpdateMsg{}
	}
}

func ListenForPorts(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Engine),
		ListenForPorts(m.Watcher),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case PortEventMsg:
		ev := midi.WatchEvent(msg)
		if ev.Present {
			m.portMsg = "port up: " + ev.Port
			m.portLost = false
		} else {
			m.portMsg = "port lost: " + ev.Port
			m.portLost = true
			if ev.Port == m.Output.Port() {
				m.Output.Invalidate(ev.Port)
			}
		}
		return m, ListenForPorts(m.Watcher)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.stopTransport()
		return m, tea.Quit

	case "tab":
		if m.page == pageLanes {
			m.page = pageTranspose
		} else {
			m.page = pageLanes
		}
		return m, nil

	case "p":
		if m.Engine.Running() {
			m.stopTransport()
		} else {
			m.Engine.Start()
		}
		return m, nil

	case "+", "=":
		m.nudgeTempo(5)
		return m, nil

	case "-", "_":
		m.nudgeTempo(-5)
		return m, nil
	}

	if m.page == pageLanes {
		return m.handleLanesKey(msg)
	}
	return m.handleTransposeKey(msg)
}

// stopTransport stops the clock and drops the queued look-ahead events;
// the engine's corrective note-off has already gone out by the time Clear
// runs.
func (m Model) stopTransport() {
	m.Engine.Stop()
	m.Output.Clear()
}

func (m Model) nudgeTempo(delta float64) {
	m.Engine.SetTempo(m.Engine.Tempo() + delta)
	m.Clock.SetRate(transpose.StepsPerSecond(m.Engine.Tempo()))
}

func (m Model) handleLanesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lane := sequencer.LaneID(m.rowCur)
	onMask := m.rowCur == maskRow

	switch msg.String() {
	case "h", "left":
		m.stepCur = wrap(m.stepCur-1, sequencer.NumSteps)
	case "l", "right":
		m.stepCur = wrap(m.stepCur+1, sequencer.NumSteps)
	case "k", "up":
		m.rowCur = wrap(m.rowCur-1, maskRow+1)
	case "j", "down":
		m.rowCur = wrap(m.rowCur+1, maskRow+1)

	case " ":
		if onMask {
			m.Engine.ToggleStep(m.stepCur)
		} else if lane == sequencer.LaneGate {
			m.editValue(lane, true)
		} else {
			m.Engine.SetStepValue(lane, m.stepCur, 0)
		}

	case "K":
		if !onMask {
			m.editValue(lane, true)
		}
	case "J":
		if !onMask {
			m.editValue(lane, false)
		}

	case "[":
		if !onMask {
			m.Engine.SetLaneLength(lane, m.laneState(lane).Length-1)
		}
	case "]":
		if !onMask {
			m.Engine.SetLaneLength(lane, m.laneState(lane).Length+1)
		}

	case "m":
		if !onMask {
			if mode, ok := sequencer.ParseMode(m.laneState(lane).Mode); ok {
				m.Engine.SetLaneMode(lane, sequencer.NextMode(mode))
			}
		}

	case "d":
		if !onMask {
			m.Engine.SetLaneDivision(lane, sequencer.NextDivision(m.laneState(lane).Division))
		}
	case "D":
		if !onMask {
			m.Engine.SetLaneDivision(lane, sequencer.PrevDivision(m.laneState(lane).Division))
		}

	case ",", "<":
		m.Engine.SetSnakeIndex(m.Engine.State().SnakeIndex - 1)
	case ".", ">":
		m.Engine.SetSnakeIndex(m.Engine.State().SnakeIndex + 1)
	}

	return m, nil
}

func (m Model) laneState(lane sequencer.LaneID) sequencer.LaneState {
	return m.Engine.State().Lanes[lane]
}

// editValue nudges the cursor step on a lane: gates toggle, notes move by
// a semitone within two octaves, mod lanes move in twentieths of range.
func (m Model) editValue(lane sequencer.LaneID, up bool) {
	v := m.laneState(lane).Values[m.stepCur]
	switch lane {
	case sequencer.LaneGate:
		if v != 0 {
			v = 0
		} else {
			v = 1
		}
	case sequencer.LaneNote:
		if up {
			v++
		} else {
			v--
		}
		v = clampF(v, -24, 24)
	default:
		if up {
			v += 0.05
		} else {
			v -= 0.05
		}
		v = clampF(v, 0, 1)
	}
	m.Engine.SetStepValue(lane, m.stepCur, v)
}

func (m Model) handleTransposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cells := m.Transpose.Cells()
	c := cells[m.stepCur]

	switch msg.String() {
	case "h", "left":
		m.stepCur = wrap(m.stepCur-1, transpose.NumCells)
	case "l", "right":
		m.stepCur = wrap(m.stepCur+1, transpose.NumCells)

	case "k", "up":
		c.Transpose++
		m.Transpose.SetCell(m.stepCur, c)
	case "j", "down":
		c.Transpose--
		m.Transpose.SetCell(m.stepCur, c)
	case "K":
		c.Transpose += 12
		m.Transpose.SetCell(m.stepCur, c)
	case "J":
		c.Transpose -= 12
		m.Transpose.SetCell(m.stepCur, c)

	case "r":
		c.Repeats++
		m.Transpose.SetCell(m.stepCur, c)
	case "R":
		c.Repeats--
		m.Transpose.SetCell(m.stepCur, c)

	case " ":
		c.Active = !c.Active
		m.Transpose.SetCell(m.stepCur, c)

	case "m":
		m.Transpose.SetMode(sequencer.NextMode(m.Transpose.Mode()))

	case "c":
		if m.Transpose.Clock() == transpose.ClockInternal {
			m.Transpose.SetClockSource(transpose.ClockExternal)
		} else {
			m.Transpose.SetClockSource(transpose.ClockInternal)
		}

	case "x":
		m.Transpose.Reset()

	case "a":
		m.Transpose.TriggerExternalAdvance()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.Engine.State()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	playState := "STOP"
	if st.Running {
		playState = "PLAY"
	}
	pageName := "LANES"
	if m.page == pageTranspose {
		pageName = "TRANSPOSE"
	}
	header := headerStyle.Render(fmt.Sprintf("sub000  %s  %3.0fbpm %3dms  snake:%s  [%s]",
		playState, st.Tempo, m.Engine.BasePeriod().Milliseconds(),
		sequencer.Pattern(st.SnakeIndex).Name, pageName))

	var body string
	if m.page == pageLanes {
		body = m.lanesView(st)
	} else {
		body = m.transposeView()
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	if m.portMsg != "" {
		portStyle := dimStyle
		if m.portLost {
			portStyle = lipgloss.NewStyle().Foreground(m.Theme.Warning())
		}
		out.WriteString("  ")
		out.WriteString(portStyle.Render(m.portMsg))
	}
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(m.helpSections())))

	return out.String()
}

func (m Model) lanesView(st sequencer.State) string {
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	pat := sequencer.Pattern(st.SnakeIndex)

	var out strings.Builder
	for row := 0; row < int(sequencer.NumLanes); row++ {
		ls := st.Lanes[row]

		// Physical steps the traversal can reach at this length.
		reach := make(map[int]bool, ls.Length)
		for p := 0; p < ls.Length; p++ {
			reach[pat.Sequence[p]] = true
		}
		playPhys := pat.Sequence[ls.Position]

		states := make([]widgets.StepState, sequencer.NumSteps)
		for i := range states {
			states[i] = widgets.StepState{
				Active:   ls.Values[i] != 0,
				Playhead: st.Running && i == playPhys,
				Cursor:   m.rowCur == row && m.stepCur == i,
				Beyond:   !reach[i],
			}
		}

		out.WriteString(labelStyle.Render(fmt.Sprintf("%-5s", sequencer.LaneID(row))))
		out.WriteString(" ")
		out.WriteString(widgets.RenderStepRow(m.Theme, states))
		out.WriteString("  ")
		out.WriteString(dimStyle.Render(fmt.Sprintf("len:%2d div:%-4s %s", ls.Length, ls.Division, ls.Mode)))
		out.WriteString("\n")
	}

	maskCursor := -1
	if m.rowCur == maskRow {
		maskCursor = m.stepCur
	}
	out.WriteString(labelStyle.Render(fmt.Sprintf("%-5s", "mask")))
	out.WriteString(" ")
	out.WriteString(widgets.RenderMaskRow(m.Theme, st.StepEnabled[:], maskCursor))
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(m.cursorReadout(st)))
	out.WriteString("\n")

	return out.String()
}

// cursorReadout describes the cell under the cursor in units that fit the
// row: semitones for notes, on/off for gates and mask, 0-1 for mods.
func (m Model) cursorReadout(st sequencer.State) string {
	if m.rowCur == maskRow {
		return fmt.Sprintf("mask[%02d] = %s", m.stepCur, onOff(st.StepEnabled[m.stepCur]))
	}
	lane := sequencer.LaneID(m.rowCur)
	v := st.Lanes[lane].Values[m.stepCur]
	switch lane {
	case sequencer.LaneNote:
		return fmt.Sprintf("note[%02d] = %+.0f semi", m.stepCur, v)
	case sequencer.LaneGate:
		return fmt.Sprintf("gate[%02d] = %s", m.stepCur, onOff(v != 0))
	}
	return fmt.Sprintf("%s[%02d] = %.2f", lane, m.stepCur, v)
}

func (m Model) transposeView() string {
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	valStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	curStyle := lipgloss.NewStyle().Foreground(m.Theme.Cursor())

	cells := m.Transpose.Cells()
	pos := m.Transpose.Position()

	var glyphs, semis, reps strings.Builder
	for i, c := range cells {
		s := widgets.StepState{
			Active:   c.Active,
			Playhead: i == pos,
			Cursor:   i == m.stepCur,
		}
		gl := lipgloss.NewStyle().Foreground(m.cellColor(s))
		glyphs.WriteString(gl.Render(fmt.Sprintf("   %c", widgets.StepRune(m.Theme.Symbols, s))))

		style := valStyle
		if !c.Active {
			style = dimStyle
		}
		if i == m.stepCur {
			style = curStyle
		}
		semis.WriteString(style.Render(fmt.Sprintf("%+4d", c.Transpose)))
		reps.WriteString(style.Render(fmt.Sprintf("%4s", fmt.Sprintf("x%d", c.Repeats))))
	}

	var out strings.Builder
	out.WriteString(glyphs.String())
	out.WriteString("\n")
	out.WriteString(semis.String())
	out.WriteString("\n")
	out.WriteString(reps.String())
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(fmt.Sprintf("clock:%s  mode:%s  cell:%02d  now:%+d semi",
		m.Transpose.Clock(), m.Transpose.Mode(), pos, m.Transpose.CurrentTranspose())))
	out.WriteString("\n")

	return out.String()
}

func (m Model) cellColor(s widgets.StepState) lipgloss.Color {
	switch {
	case s.Cursor:
		return m.Theme.Cursor()
	case s.Playhead:
		return m.Theme.Success()
	case s.Active:
		return m.Theme.Active()
	}
	return m.Theme.Muted()
}

func (m Model) helpSections() []widgets.KeySection {
	global := widgets.KeySection{Title: "GLOBAL", Keys: []widgets.KeyBinding{
		{Key: "tab", Desc: "page"},
		{Key: "p", Desc: "play/stop"},
		{Key: "+/-", Desc: "tempo"},
		{Key: "q", Desc: "quit"},
	}}

	if m.page == pageTranspose {
		return []widgets.KeySection{
			{Title: "TRANSPOSE", Keys: []widgets.KeyBinding{
				{Key: "h/l", Desc: "cell"},
				{Key: "j/k", Desc: "semitone -/+"},
				{Key: "J/K", Desc: "octave -/+"},
				{Key: "r/R", Desc: "repeats +/-"},
				{Key: "space", Desc: "active"},
				{Key: "m", Desc: "mode"},
				{Key: "c", Desc: "clock int/ext"},
				{Key: "x", Desc: "reset"},
				{Key: "a", Desc: "advance"},
			}},
			global,
		}
	}

	return []widgets.KeySection{
		{Title: "LANES", Keys: []widgets.KeyBinding{
			{Key: "h/j/k/l", Desc: "cursor"},
			{Key: "space", Desc: "toggle / clear"},
			{Key: "J/K", Desc: "value -/+"},
			{Key: "[/]", Desc: "length"},
			{Key: "d/D", Desc: "division"},
			{Key: "m", Desc: "mode"},
			{Key: "</>", Desc: "snake pattern"},
		}},
		global,
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func wrap(v, n int) int {
	return ((v % n) + n) % n
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
