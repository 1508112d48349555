package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gregoryhbowler/sing-sub000/theme"
)

// StepState describes one cell of a step row for rendering.
type StepState struct {
	Active   bool // step has a value / is on
	Playhead bool
	Cursor   bool
	Beyond   bool // past the lane's length
}

// StepRune picks the glyph for a cell. Beyond-length wins over playhead,
// playhead over value; the cursor swaps each glyph for its outlined form.
func StepRune(sym theme.Symbols, s StepState) rune {
	switch {
	case s.Beyond && s.Cursor:
		return sym.CursorBeyond
	case s.Beyond:
		return sym.StepBeyond
	case s.Playhead && s.Cursor:
		return sym.CursorPlayhead
	case s.Playhead:
		return sym.StepPlayhead
	case s.Active && s.Cursor:
		return sym.CursorActive
	case s.Active:
		return sym.StepActive
	case s.Cursor:
		return sym.CursorEmpty
	}
	return sym.StepEmpty
}

// RenderStepRow renders a row of step cells with spacing
func RenderStepRow(th *theme.Theme, states []StepState) string {
	var out strings.Builder
	for i, s := range states {
		if i > 0 {
			out.WriteString(" ")
		}
		style := lipgloss.NewStyle().Foreground(stepColor(th, s))
		out.WriteString(style.Render(string(StepRune(th.Symbols, s))))
	}
	return out.String()
}

// RenderMaskRow renders the global step-enable mask
func RenderMaskRow(th *theme.Theme, enabled []bool, cursor int) string {
	var out strings.Builder
	for i, on := range enabled {
		if i > 0 {
			out.WriteString(" ")
		}
		r := th.Symbols.MaskOff
		color := th.Muted()
		if on {
			r = th.Symbols.MaskOn
			color = th.Accent()
		}
		if i == cursor {
			color = th.Cursor()
		}
		out.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(r)))
	}
	return out.String()
}

func stepColor(th *theme.Theme, s StepState) lipgloss.Color {
	switch {
	case s.Cursor:
		return th.Cursor()
	case s.Playhead:
		return th.Success()
	case s.Beyond:
		return th.Muted()
	case s.Active:
		return th.Active()
	}
	return th.Muted()
}
