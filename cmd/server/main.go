// Package main is the entry point for the chordtokit API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/mty/chordtokit/pkg/api"
	"github.com/mty/chordtokit/pkg/capture"
	"github.com/mty/chordtokit/pkg/config"
	"github.com/mty/chordtokit/pkg/midiio"
	"github.com/mty/chordtokit/pkg/trigger"
)

func main() {
	port := flag.Int("port", 8080, "Server port")
	configPath := flag.String("config", config.DefaultPath(), "Config file path")
	flag.Parse()

	log := logrus.New()
	cfg := config.Load(*configPath)

	transport := midiio.New(midiio.PortConfig{
		InputName:      cfg.InputName,
		InputSubstr:    cfg.InputSubstr,
		OutputName:     cfg.OutputName,
		OutputSubstr:   cfg.OutputSubstr,
		ModuleInName:   cfg.ModuleInName,
		ModuleInSubstr: cfg.ModuleInSubstr,
	}, log)
	if err := transport.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "MIDI error: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()
	defer midi.CloseDriver()

	device := trigger.NewDevice(trigger.NewDefaultCodec(), log)
	policy := capture.DefaultPolicy()
	policy.AllowDuplicates = cfg.AllowDuplicateNotes
	policy.OctaveDownLowest = cfg.OctaveDownLowest
	engine := capture.NewEngine(transport, device, policy, cfg.UndoLimit, log)

	fmt.Printf("Starting chordtokit API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.New(engine, transport, cfg, *configPath, log).Run(*port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
