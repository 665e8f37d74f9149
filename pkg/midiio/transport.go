package midiio

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register rtmidi driver
)

// PortConfig names the ports to open: the keyboard input, the module
// output (where frames go), and the module input (where dumps and
// trigger hits come from). Exact names win; substrings are fallbacks.
type PortConfig struct {
	InputName      string
	InputSubstr    string
	OutputName     string
	OutputSubstr   string
	ModuleInName   string
	ModuleInSubstr string
}

// moduleChannel is the channel the module emits trigger hits on
// (0-based). Used to split traffic when keyboard and module share one
// physical port.
const moduleChannel = 9

// Transport owns the open MIDI ports and two non-blocking event queues,
// one per logical input stream. Driver callbacks append under a mutex;
// the poll loop drains with ReceivePending/ReceiveModulePending.
type Transport struct {
	cfg PortConfig
	log *logrus.Logger

	mu       sync.Mutex
	keyQueue []Event
	modQueue []Event

	inName     string
	outName    string
	moduleName string
	shared     bool

	stopIn     func()
	stopModule func()
	send       func(midi.Message) error
}

// New prepares a transport; no ports are opened until Open.
func New(cfg PortConfig, log *logrus.Logger) *Transport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{cfg: cfg, log: log}
}

// Inputs lists usable input port names.
func (t *Transport) Inputs() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return filterPorts(names)
}

// Outputs lists usable output port names.
func (t *Transport) Outputs() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return filterPorts(names)
}

// InputName returns the currently open keyboard input, "" if none.
func (t *Transport) InputName() string { return t.inName }

// OutputName returns the currently open module output, "" if none.
func (t *Transport) OutputName() string { return t.outName }

// ModuleInputName returns the currently open module input, "" if none.
func (t *Transport) ModuleInputName() string { return t.moduleName }

// Open resolves the configured port names and starts listening. Missing
// ports are logged and skipped; an engine with no keyboard input simply
// never collects notes.
func (t *Transport) Open() error {
	t.Close()

	ins := t.Inputs()
	outs := t.Outputs()

	t.inName = pickPort(ins, t.cfg.InputName, t.cfg.InputSubstr)
	t.outName = pickPort(outs, t.cfg.OutputName, t.cfg.OutputSubstr)
	t.moduleName = pickPort(ins, t.cfg.ModuleInName, t.cfg.ModuleInSubstr)
	t.shared = t.moduleName != "" && t.moduleName == t.inName

	if t.inName != "" {
		in := findInPort(t.inName)
		if in == nil {
			return fmt.Errorf("input port not found: %s", t.inName)
		}
		stop, err := midi.ListenTo(in, t.onKeyboardMessage, midi.UseSysEx())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", t.inName, err)
		}
		t.stopIn = stop
		t.log.WithField("port", t.inName).Info("opened keyboard input")
	} else {
		t.log.Warn("no keyboard input port matched")
	}

	if t.moduleName != "" && !t.shared {
		in := findInPort(t.moduleName)
		if in == nil {
			return fmt.Errorf("module input port not found: %s", t.moduleName)
		}
		stop, err := midi.ListenTo(in, t.onModuleMessage, midi.UseSysEx())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", t.moduleName, err)
		}
		t.stopModule = stop
		t.log.WithField("port", t.moduleName).Info("opened module input")
	} else if t.shared {
		t.log.WithField("port", t.inName).Info("module input shares keyboard port")
	}

	if t.outName != "" {
		out := findOutPort(t.outName)
		if out == nil {
			return fmt.Errorf("output port not found: %s", t.outName)
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return fmt.Errorf("failed to open sender on %s: %w", t.outName, err)
		}
		t.send = send
		t.log.WithField("port", t.outName).Info("opened module output")
	} else {
		t.log.Warn("no module output port matched")
	}

	return nil
}

// Close stops all listeners and forgets the sender. Safe to call twice.
func (t *Transport) Close() {
	if t.stopIn != nil {
		t.stopIn()
		t.stopIn = nil
	}
	if t.stopModule != nil {
		t.stopModule()
		t.stopModule = nil
	}
	t.send = nil
	t.inName, t.outName, t.moduleName = "", "", ""
	t.DrainInputs()
}

// Reopen closes and reopens with the current configuration.
func (t *Transport) Reopen() error {
	t.Close()
	return t.Open()
}

// SetPorts swaps the port configuration; takes effect on the next Open.
func (t *Transport) SetPorts(cfg PortConfig) {
	t.cfg = cfg
}

func (t *Transport) onKeyboardMessage(msg midi.Message, timestampms int32) {
	ev, ok := parseMessage(msg)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shared && (ev.Type == EventSysEx || ev.Channel == moduleChannel) {
		// Shared physical port: module traffic is SysEx plus hits on
		// the drum channel, everything else is the keyboard.
		t.modQueue = append(t.modQueue, ev)
		return
	}
	t.keyQueue = append(t.keyQueue, ev)
}

func (t *Transport) onModuleMessage(msg midi.Message, timestampms int32) {
	ev, ok := parseMessage(msg)
	if !ok {
		return
	}
	t.mu.Lock()
	t.modQueue = append(t.modQueue, ev)
	t.mu.Unlock()
}

func parseMessage(msg midi.Message) (Event, bool) {
	var channel, key, velocity uint8
	var data []byte
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		return Event{Type: EventNoteOn, Channel: channel, Note: key, Velocity: velocity}, true
	case msg.GetNoteOff(&channel, &key, &velocity):
		return Event{Type: EventNoteOff, Channel: channel, Note: key, Velocity: velocity}, true
	case msg.GetSysEx(&data):
		return Event{Type: EventSysEx, Data: data}, true
	default:
		return Event{Type: EventOther}, true
	}
}

// ReceivePending returns everything queued on the keyboard stream,
// without blocking.
func (t *Transport) ReceivePending() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	evs := t.keyQueue
	t.keyQueue = nil
	return evs
}

// ReceiveModulePending returns everything queued on the module stream,
// without blocking.
func (t *Transport) ReceiveModulePending() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	evs := t.modQueue
	t.modQueue = nil
	return evs
}

// DrainInputs discards all queued events and reports how many there were.
func (t *Transport) DrainInputs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.keyQueue) + len(t.modQueue)
	t.keyQueue = nil
	t.modQueue = nil
	return n
}

// Send wraps a payload as a SysEx message and fires it at the module
// output. Framing bytes are added here, never by the codec. Returns
// whether the write succeeded; failures are logged, not fatal.
func (t *Transport) Send(frame []byte) bool {
	if t.send == nil {
		t.log.Warn("send: no output port open")
		return false
	}
	if err := t.send(midi.SysEx(frame)); err != nil {
		t.log.WithError(err).Error("send failed")
		return false
	}
	return true
}

func findInPort(name string) drivers.In {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in
		}
	}
	return nil
}

func findOutPort(name string) drivers.Out {
	for _, out := range midi.GetOutPorts() {
		if out.String() == name {
			return out
		}
	}
	return nil
}
