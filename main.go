package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/gregoryhbowler/sing-sub000/config"
	"github.com/gregoryhbowler/sing-sub000/debug"
	"github.com/gregoryhbowler/sing-sub000/midi"
	"github.com/gregoryhbowler/sing-sub000/sequencer"
	"github.com/gregoryhbowler/sing-sub000/theme"
	"github.com/gregoryhbowler/sing-sub000/transpose"
	"github.com/gregoryhbowler/sing-sub000/tui"
)

// advanceOnCycle forwards the note lane's cycle-complete to the transpose
// engine as one discrete advance event. The event only counts while the
// transpose clock source is external.
type advanceOnCycle struct {
	tr *transpose.Engine
}

func (a advanceOnCycle) OnCycleComplete(at time.Time) {
	a.tr.TriggerExternalAdvance()
}

func main() {
	debugFlag := flag.Bool("debug", false, "write debug log to ~/.config/sub000/debug.log")
	portFlag := flag.String("port", "", "MIDI output port (substring match, overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debugFlag || cfg.Debug {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	th := theme.New(theme.Default())

	// Control-domain lane scheduler. The config tempo seeds a fresh
	// install; a saved snapshot from the last session wins over it.
	eng := sequencer.New()
	eng.SetTempo(cfg.Tempo)
	statePath := ""
	if dir, err := config.ConfigDir(); err == nil {
		statePath = filepath.Join(dir, "state.json")
		if st, err := sequencer.LoadState(statePath); err == nil {
			eng.SetState(st)
			debug.Log("main", "restored state from %s", statePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "state: %v\n", err)
		}
	}

	// Audio-domain transpose engine plus its internal step clock.
	tr := transpose.New(cfg.SampleRate)
	clock := transpose.NewStepClock(cfg.SampleRate, transpose.StepsPerSecond(eng.Tempo()))

	// MIDI output. A missing port is not fatal; sub000 still runs as an
	// audio-only groovebox.
	defer gomidi.CloseDriver()
	out := midi.NewOutput()
	portName := *portFlag
	if portName == "" {
		portName = cfg.OutputPort
	}
	if resolved, err := midi.FindOutPort(portName); err == nil {
		out.SetPort(resolved)
		debug.Log("main", "midi out: %s", resolved)
	} else {
		fmt.Fprintf(os.Stderr, "midi: %v (running without output)\n", err)
	}
	out.Start()
	defer out.Close()

	// Bridge lanes to MIDI: note+gate drive pitched notes, mod lanes drive
	// CCs. The transpose engine taps into every note-on.
	noteOut := midi.NewNoteOut(out, cfg.Channel, cfg.RootNote, tr)
	eng.RegisterStepSink(sequencer.LaneNote, noteOut)
	eng.RegisterGateSink(noteOut)
	for i, cc := range cfg.ModCCs {
		eng.RegisterStepSink(sequencer.LaneMod0+sequencer.LaneID(i), midi.NewModOut(out, cfg.Channel, cc))
	}
	eng.RegisterCycleSink(advanceOnCycle{tr: tr})

	// Audio host for the transpose CV and pulse outputs, running at the
	// rate the engine derived its pulse widths from.
	sr := beep.SampleRate(tr.SampleRate())
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		fmt.Fprintf(os.Stderr, "audio: %v (running without audio)\n", err)
	} else {
		speaker.Play(transpose.NewStreamer(tr, clock))
		defer speaker.Close()
	}

	// Hot-plug watcher keeps the TUI's port status current.
	watcher := midi.NewWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	m := tui.NewModel(eng, tr, clock, out, watcher, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eng.Stop()
	if statePath != "" {
		if err := sequencer.SaveState(statePath, eng.State()); err != nil {
			fmt.Fprintf(os.Stderr, "state: %v\n", err)
		}
	}
}

