package main

import (
	"context"
	"fmt"
	"os"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/gregoryhbowler/sing-sub000/midi"
)

func main() {
	defer gomidi.CloseDriver()

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "watch":
		watchPorts()
	case "note":
		arg := ""
		if len(os.Args) > 2 {
			arg = os.Args[2]
		}
		testNote(arg)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("sub000 MIDI probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list         - List all MIDI ports")
	fmt.Println("  watch        - Watch for port connect/disconnect")
	fmt.Println("  note [port]  - Send a test arpeggio to a port (substring match)")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	select {
	case ins := <-ch:
		for i, p := range ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! MIDI server is hung.")
		return
	}

	fmt.Println("\n=== MIDI Output Ports ===")
	outs, err := midi.OutPorts()
	if err != nil {
		fmt.Printf("  %v\n", err)
		return
	}
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p)
	}
}

func watchPorts() {
	fmt.Println("Watching for port changes. Ctrl+C to exit.")

	w := midi.NewWatcher()
	go w.Run(context.Background())

	for ev := range w.Events() {
		mark := "+"
		if !ev.Present {
			mark = "-"
		}
		fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05"), mark, ev.Port)
	}
}

func testNote(portArg string) {
	port, err := midi.FindOutPort(portArg)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Using output: %s\n", port)

	out := midi.NewOutput()
	out.SetPort(port)
	out.Start()
	defer out.Close()

	// Queue a short ascending arpeggio through the scheduler so timing
	// goes through the same path the sequencer uses.
	now := time.Now()
	for i, pitch := range []uint8{48, 52, 55, 60} {
		on := now.Add(time.Duration(i) * 250 * time.Millisecond)
		out.Send(on, gomidi.NoteOn(0, pitch, 100))
		out.Send(on.Add(200*time.Millisecond), gomidi.NoteOff(0, pitch))
	}

	time.Sleep(1200 * time.Millisecond)
	fmt.Println("Done!")
}
