// Package main is the entry point for the chordtokit CLI
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/mty/chordtokit/pkg/api"
	"github.com/mty/chordtokit/pkg/capture"
	"github.com/mty/chordtokit/pkg/config"
	"github.com/mty/chordtokit/pkg/hw"
	"github.com/mty/chordtokit/pkg/midiio"
	"github.com/mty/chordtokit/pkg/syxfile"
	"github.com/mty/chordtokit/pkg/trigger"
	"github.com/mty/chordtokit/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath     string
	inPort         string
	outPort        string
	moduleInPort   string
	timeoutSecs    float64
	allowDups      bool
	octaveDown     bool
	serverPort     int
	footswitchPath string
	verbose        bool
)

var log = logrus.New()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chordtokit",
	Short: "Map keyboard chords onto drum trigger pads over SysEx",
	Long: `chordtokit listens to a MIDI keyboard, collects played notes into a
chord, and reprograms an Alesis-style drum trigger module so its pads
play those notes.

Examples:
  chordtokit run
  chordtokit run --in "KeyStep" --footswitch /dev/input/event3
  chordtokit apply 36 38 42 49
  chordtokit patch 36 48
  chordtokit ports
  chordtokit tui
  chordtokit serve --port 8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture loop, armed by a footswitch",
	RunE:  runRun,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture one chord from the keyboard and map it onto the pads",
	RunE:  runCapture,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI ports",
	RunE:  runPorts,
}

var applyCmd = &cobra.Command{
	Use:   "apply <note> <note> <note> <note>",
	Short: "Write a full 4-note mapping to the module",
	Args:  cobra.ExactArgs(trigger.SlotCount),
	RunE:  runApply,
}

var patchCmd = &cobra.Command{
	Use:   "patch <old> <new>",
	Short: "Replace one note throughout the last synced kit dump",
	Long: `Replaces every occurrence of <old> in the most recent kit dump
received from the module and sends the result back. Requires a dump:
press the module's dump button (or run sync) first.`,
	Args: cobra.ExactArgs(2),
	RunE: runPatch,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Wait for a kit dump sent from the module",
	RunE:  runSync,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <file.syx>",
	Short: "Save the next kit dump from the module to a .syx file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var loadCmd = &cobra.Command{
	Use:   "load <file.syx>",
	Short: "Send a saved .syx kit dump back to the module",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var diffCmd = &cobra.Command{
	Use:   "diff <a.syx> <b.syx>",
	Short: "Show byte offsets where two .syx dumps differ",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&inPort, "in", "", "Keyboard input port (substring match)")
	rootCmd.PersistentFlags().StringVar(&outPort, "out", "", "Module output port (substring match)")
	rootCmd.PersistentFlags().StringVar(&moduleInPort, "module-in", "", "Module input port (substring match)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	runCmd.Flags().Float64Var(&timeoutSecs, "timeout", 0, "Capture timeout in seconds (0 = config value)")
	runCmd.Flags().BoolVar(&allowDups, "duplicates", false, "Allow the same note on more than one pad")
	runCmd.Flags().BoolVar(&octaveDown, "octave-down", false, "Drop the kick note one octave")
	runCmd.Flags().StringVar(&footswitchPath, "footswitch", "", "Footswitch evdev device (default: config value)")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	captureCmd.Flags().Float64Var(&timeoutSecs, "timeout", 0, "Capture timeout in seconds (0 = config value)")
	captureCmd.Flags().BoolVar(&allowDups, "duplicates", false, "Allow the same note on more than one pad")
	captureCmd.Flags().BoolVar(&octaveDown, "octave-down", false, "Drop the kick note one octave")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig() (config.Config, string) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg := config.Load(path)

	if inPort != "" {
		cfg.InputName = ""
		cfg.InputSubstr = inPort
	}
	if outPort != "" {
		cfg.OutputName = ""
		cfg.OutputSubstr = outPort
	}
	if moduleInPort != "" {
		cfg.ModuleInName = ""
		cfg.ModuleInSubstr = moduleInPort
	}
	return cfg, path
}

func policyFromConfig(cfg config.Config) capture.Policy {
	policy := capture.DefaultPolicy()
	policy.AllowDuplicates = cfg.AllowDuplicateNotes
	policy.OctaveDownLowest = cfg.OctaveDownLowest
	if cfg.CaptureTimeoutSeconds > 0 {
		policy.Timeout = time.Duration(cfg.CaptureTimeoutSeconds * float64(time.Second))
	}
	return policy
}

// setup opens the transport and builds the engine. The caller owns the
// returned transport and must Close it; midi.CloseDriver runs at exit.
func setup(cfg config.Config) (*capture.Engine, *midiio.Transport, error) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	transport := midiio.New(midiio.PortConfig{
		InputName:      cfg.InputName,
		InputSubstr:    cfg.InputSubstr,
		OutputName:     cfg.OutputName,
		OutputSubstr:   cfg.OutputSubstr,
		ModuleInName:   cfg.ModuleInName,
		ModuleInSubstr: cfg.ModuleInSubstr,
	}, log)
	if err := transport.Open(); err != nil {
		return nil, nil, err
	}

	device := trigger.NewDevice(trigger.NewDefaultCodec(), log)
	engine := capture.NewEngine(transport, device, policyFromConfig(cfg), cfg.UndoLimit, log)
	return engine, transport, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	if timeoutSecs > 0 {
		cfg.CaptureTimeoutSeconds = timeoutSecs
	}
	if allowDups {
		cfg.AllowDuplicateNotes = true
	}
	if octaveDown {
		cfg.OctaveDownLowest = true
	}

	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	fsPath := footswitchPath
	if fsPath == "" {
		fsPath = cfg.FootswitchDevice
	}
	var fs *hw.Footswitch
	if fsPath != "" {
		fs, err = hw.OpenFootswitch(fsPath, cfg.FootswitchActiveLow, log)
		if err != nil {
			log.WithError(err).Warn("footswitch unavailable, keyboard capture always armed")
		} else {
			defer fs.Close()
		}
	}

	armMode := capture.ModeChord
	if cfg.FootswitchMode == config.FootswitchModeSingle {
		armMode = capture.ModeSingle
	}

	// Without a footswitch the engine stays armed for chord capture.
	if fs == nil {
		if err := engine.Activate(capture.ModeChord); err != nil {
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("Listening on %q, module on %q. Ctrl-C to quit.\n",
		transport.InputName(), transport.OutputName())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			fmt.Println("\nBye.")
			return nil
		case <-ticker.C:
			if fs != nil && fs.PressedEdge() {
				if engine.Mode() == capture.ModeIdle {
					if err := engine.Activate(armMode); err != nil {
						log.WithError(err).Warn("cannot arm capture")
					} else {
						fmt.Println("Armed. Play.")
					}
				} else {
					engine.Deactivate()
					fmt.Println("Capture cancelled.")
				}
			}

			wasActive := engine.Mode() != capture.ModeIdle
			engine.Tick()
			if wasActive && engine.Mode() == capture.ModeIdle {
				reportOutcome(engine)
				if fs == nil {
					// Re-arm immediately so the next chord is captured too.
					if err := engine.Activate(capture.ModeChord); err != nil {
						log.WithError(err).Warn("cannot re-arm capture")
					}
				}
			}
		}
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	if timeoutSecs > 0 {
		cfg.CaptureTimeoutSeconds = timeoutSecs
	}
	if allowDups {
		cfg.AllowDuplicateNotes = true
	}
	if octaveDown {
		cfg.OctaveDownLowest = true
	}

	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	if err := engine.Activate(capture.ModeChord); err != nil {
		return err
	}
	fmt.Printf("Play %d notes...\n", trigger.SlotCount)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		<-ticker.C
		engine.Tick()
		if engine.Mode() == capture.ModeIdle {
			if slots := engine.LastCaptured(); slots != nil {
				fmt.Printf("Pads now play %s\n", formatSlots(slots))
				return nil
			}
			return fmt.Errorf("capture did not complete")
		}
	}
	return fmt.Errorf("no chord captured")
}

func reportOutcome(engine *capture.Engine) {
	if err := engine.Err(); err != nil {
		fmt.Printf("Capture failed: %v\n", err)
		return
	}
	if slots := engine.LastCaptured(); slots != nil {
		fmt.Printf("Pads now play %s\n", formatSlots(slots))
	}
}

func formatSlots(slots []uint8) string {
	s := ""
	for i, n := range slots {
		if i > 0 {
			s += "  "
		}
		s += fmt.Sprintf("%s=%s", trigger.SlotName(i), trigger.NoteName(n))
	}
	return s
}

func runPorts(cmd *cobra.Command, args []string) error {
	defer midi.CloseDriver()
	transport := midiio.New(midiio.PortConfig{}, log)

	fmt.Println("Inputs:")
	for _, name := range transport.Inputs() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Outputs:")
	for _, name := range transport.Outputs() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	notes := make([]uint8, 0, trigger.SlotCount)
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 || n > 127 {
			return fmt.Errorf("invalid note %q: want 0..127", arg)
		}
		notes = append(notes, uint8(n))
	}

	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	if err := engine.ApplyMapping(notes); err != nil {
		return err
	}
	fmt.Printf("Pads now play %s\n", formatSlots(notes))
	return nil
}

func runPatch(cmd *cobra.Command, args []string) error {
	from, err := strconv.Atoi(args[0])
	if err != nil || from < 0 || from > 127 {
		return fmt.Errorf("invalid note %q: want 0..127", args[0])
	}
	to, err := strconv.Atoi(args[1])
	if err != nil || to < 0 || to > 127 {
		return fmt.Errorf("invalid note %q: want 0..127", args[1])
	}

	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	// The patch needs a kit dump to rewrite; wait briefly for one sent
	// from the module's front panel.
	fmt.Println("Send the current kit from the module's front panel...")
	if !waitForDump(engine, 30*time.Second) {
		return fmt.Errorf("no kit dump received")
	}

	if !engine.PatchNote(uint8(from), uint8(to)) {
		return fmt.Errorf("note %s not present in the kit", trigger.NoteName(uint8(from)))
	}
	fmt.Printf("Replaced %s with %s\n", trigger.NoteName(uint8(from)), trigger.NoteName(uint8(to)))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	fmt.Println("Send the current kit from the module's front panel...")
	if !waitForDump(engine, 60*time.Second) {
		return fmt.Errorf("no kit dump received")
	}
	fmt.Printf("Synced. Pads play %s\n", formatSlots(engine.Device().State()))
	return nil
}

func waitForDump(engine *capture.Engine, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		<-ticker.C
		engine.Tick()
		if engine.Device().HasRawDump() {
			return true
		}
	}
	return false
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	fmt.Println("Send the current kit from the module's front panel...")
	if !waitForDump(engine, 60*time.Second) {
		return fmt.Errorf("no kit dump received")
	}
	if err := syxfile.WriteFrame(args[0], engine.Device().RawDump()); err != nil {
		return err
	}
	fmt.Printf("Saved kit dump to %s\n", args[0])
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	frame, err := syxfile.ReadFirstFrame(args[0])
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	if !transport.Send(frame) {
		return fmt.Errorf("sending dump to module failed")
	}
	engine.Device().RestoreRawFrame(frame)
	fmt.Printf("Sent %s to the module\n", args[0])
	if slots := engine.Device().State(); slots != nil {
		fmt.Printf("Pads now play %s\n", formatSlots(slots))
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := syxfile.ReadFirstFrame(args[0])
	if err != nil {
		return err
	}
	b, err := syxfile.ReadFirstFrame(args[1])
	if err != nil {
		return err
	}

	diffs := syxfile.Diff(a, b)
	if len(diffs) == 0 {
		fmt.Println("Dumps are identical.")
		return nil
	}
	fmt.Printf("%d bytes differ\n", len(diffs))
	for _, off := range diffs {
		var av, bv string
		if off < len(a) {
			av = fmt.Sprintf("0x%02X", a[off])
		} else {
			av = "--"
		}
		if off < len(b) {
			bv = fmt.Sprintf("0x%02X", b[off])
		} else {
			bv = "--"
		}
		fmt.Printf("  offset %3d: %s -> %s\n", off, av, bv)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, _ := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	return tui.Run(engine)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path := loadConfig()
	engine, transport, err := setup(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()
	defer midi.CloseDriver()

	fmt.Printf("Starting API server on port %d...\n", serverPort)
	return api.New(engine, transport, cfg, path, log).Run(serverPort)
}
