package capture

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mty/chordtokit/pkg/midiio"
	"github.com/mty/chordtokit/pkg/trigger"
)

// ErrSendFailed reports a transport write that did not go through. The
// module state model is left untouched when it happens.
var ErrSendFailed = errors.New("midi send failed")

// Transport is the engine's view of MIDI I/O. All receives are
// non-blocking drains; Send is fire-and-forget with a success flag.
type Transport interface {
	ReceivePending() []midiio.Event
	ReceiveModulePending() []midiio.Event
	Send(frame []byte) bool
	DrainInputs() int
}

// Mode is the engine's current capture mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeChord
	ModeLearn
	ModeSingle
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeChord:
		return "chord"
	case ModeLearn:
		return "learn"
	case ModeSingle:
		return "single"
	case ModeSync:
		return "sync"
	default:
		return "idle"
	}
}

// Trigger-hit acceptance, matching the hardware flows: ignore grazes
// below the velocity floor and double-fires inside the debounce window.
const (
	minTriggerVelocity = 8
	triggerDebounce    = 120 * time.Millisecond
)

// Engine drives capture over one transport and one device model. It is
// single-owner: every method is expected to be called from the same
// polling loop, so no locking happens here.
type Engine struct {
	transport Transport
	device    *trigger.Device
	session   *Session
	history   *History
	log       *logrus.Logger
	now       func() time.Time

	mode     Mode
	fallback map[uint8]int

	lastSent     []uint8 // assignment of the last successful send
	learned      []uint8 // interactively learned pad mapping
	lastCaptured []uint8 // result of the most recent completed capture
	lastErr      error

	// single-note state
	pendingSlot int
	hasPending  bool
	lastHit     time.Time

	// learn state
	learnNotes []uint8
}

// NewEngine wires the engine. A nil logger falls back to the standard
// logrus logger.
func NewEngine(transport Transport, device *trigger.Device, policy Policy, undoLimit int, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if undoLimit <= 0 {
		undoLimit = DefaultHistoryLimit
	}
	return &Engine{
		transport: transport,
		device:    device,
		session:   NewSession(policy),
		history:   NewHistory(undoLimit),
		log:       log,
		now:       time.Now,
		fallback:  trigger.DefaultFallbackTable(),
	}
}

// Mode returns the active capture mode.
func (e *Engine) Mode() Mode { return e.mode }

// Device returns the device state model.
func (e *Engine) Device() *trigger.Device { return e.device }

// Session returns the capture session.
func (e *Engine) Session() *Session { return e.session }

// History returns the undo history.
func (e *Engine) History() *History { return e.history }

// Err returns the last user-visible error (e.g. unknown base state),
// cleared on the next activation.
func (e *Engine) Err() error { return e.lastErr }

// LastCaptured returns the assignment produced by the most recent
// completed capture, nil if none.
func (e *Engine) LastCaptured() []uint8 {
	if e.lastCaptured == nil {
		return nil
	}
	return append([]uint8(nil), e.lastCaptured...)
}

// LearnedMapping returns the interactively learned pad mapping, nil if
// none has been learned yet.
func (e *Engine) LearnedMapping() []uint8 {
	if e.learned == nil {
		return nil
	}
	return append([]uint8(nil), e.learned...)
}

// SetLearnedMapping overrides the learned mapping; ignored unless it has
// exactly one note per pad.
func (e *Engine) SetLearnedMapping(mapping []uint8) {
	if len(mapping) != trigger.SlotCount {
		e.log.WithField("len", len(mapping)).Warn("learned mapping must have one note per pad")
		return
	}
	e.learned = append([]uint8(nil), mapping...)
}

// SetPolicy swaps the capture policy. Always clears the bucket.
func (e *Engine) SetPolicy(policy Policy) {
	e.session.SetPolicy(policy)
}

// Activate switches into a capture mode: the bucket and pending input
// are cleared so stale notes from before activation are discarded.
// Single-note mode requires an established base state.
func (e *Engine) Activate(mode Mode) error {
	e.lastErr = nil
	if mode == ModeSingle && e.device.State() == nil {
		e.lastErr = trigger.ErrUnknownBaseState
		return e.lastErr
	}
	e.mode = mode
	e.session.Clear()
	e.hasPending = false
	e.learnNotes = nil
	e.lastCaptured = nil
	if n := e.transport.DrainInputs(); n > 0 {
		e.log.WithField("count", n).Debug("drained stale events on activate")
	}
	return nil
}

// Deactivate cancels any active capture. Always legal, idempotent.
func (e *Engine) Deactivate() {
	e.mode = ModeIdle
	e.session.Clear()
	e.hasPending = false
	e.learnNotes = nil
	if n := e.transport.DrainInputs(); n > 0 {
		e.log.WithField("count", n).Debug("drained stale events on deactivate")
	}
}

// Tick runs one poll iteration: ingest module SysEx, then advance the
// active mode. Returns whether externally visible state changed. A
// failure inside one tick never prevents the next.
func (e *Engine) Tick() bool {
	now := e.now()

	modEvents := e.transport.ReceiveModulePending()
	dirty := false
	var modNotes []midiio.Event
	for _, ev := range modEvents {
		switch ev.Type {
		case midiio.EventSysEx:
			had := e.device.HasRawDump()
			e.device.IngestRawFrame(ev.Data)
			if !had && e.device.HasRawDump() {
				// First dump establishes the initial undo point.
				if slots := e.device.State(); slots != nil {
					e.history.PushMapping(slots)
				}
				dirty = true
			}
		case midiio.EventNoteOn:
			modNotes = append(modNotes, ev)
		}
	}

	switch e.mode {
	case ModeChord:
		dirty = e.tickChord(now) || dirty
	case ModeLearn:
		dirty = e.tickLearn(now, modNotes) || dirty
	case ModeSingle:
		dirty = e.tickSingle(now, modNotes) || dirty
	case ModeSync:
		if e.device.HasRawDump() {
			e.mode = ModeIdle
			dirty = true
		}
		e.discardKeyboardInput()
	default:
		// Idle still consumes keyboard input so it cannot pile up.
		e.discardKeyboardInput()
	}
	return dirty
}

func (e *Engine) discardKeyboardInput() {
	_ = e.transport.ReceivePending()
}

func (e *Engine) tickChord(now time.Time) bool {
	dirty := false
	if e.session.CheckTimeout(now) {
		e.log.Info("capture timeout, bucket cleared")
		dirty = true
	}
	for _, ev := range e.transport.ReceivePending() {
		if ev.Type != midiio.EventNoteOn || ev.Velocity == 0 {
			continue
		}
		if e.session.Offer(ev.Note, now) {
			dirty = true
		}
	}
	if assignment := e.session.Resolve(); assignment != nil {
		e.completeChord(assignment)
		dirty = true
	}
	return dirty
}

// completeChord sends the resolved assignment. The capture is consumed
// even when the send fails, so a stuck bucket can never wedge the mode;
// the user simply recaptures.
func (e *Engine) completeChord(assignment []uint8) {
	defer func() {
		e.session.Clear()
		e.mode = ModeIdle
	}()

	frame, err := e.device.Codec().BuildFullFrame(assignment)
	if err != nil {
		e.log.WithError(err).Error("building capture frame failed")
		return
	}
	e.lastCaptured = append([]uint8(nil), assignment...)
	if !e.transport.Send(frame) {
		e.log.Warn("send failed, module state unchanged; recapture to retry")
		return
	}
	if prev := e.device.State(); prev != nil {
		e.history.PushMapping(prev)
	}
	if _, err := e.device.WriteFull(assignment); err != nil {
		e.log.WithError(err).Error("committing capture state failed")
		return
	}
	e.lastSent = e.device.State()
	e.learned = append([]uint8(nil), assignment...)
	e.log.WithField("assignment", assignment).Info("sent full mapping")
}

func (e *Engine) tickLearn(now time.Time, modNotes []midiio.Event) bool {
	dirty := false
	for _, ev := range modNotes {
		if ev.Velocity < minTriggerVelocity {
			continue
		}
		if now.Sub(e.lastHit) < triggerDebounce {
			continue
		}
		e.lastHit = now
		if containsNote(e.learnNotes, ev.Note) {
			e.log.WithField("note", ev.Note).Debug("trigger already learned, skipping")
			continue
		}
		e.learnNotes = append(e.learnNotes, ev.Note&0x7F)
		e.log.WithFields(logrus.Fields{
			"pad":  trigger.SlotName(len(e.learnNotes) - 1),
			"note": trigger.NoteName(ev.Note),
		}).Info("learned trigger")
		dirty = true
		if len(e.learnNotes) == trigger.SlotCount {
			e.learned = append([]uint8(nil), e.learnNotes...)
			e.learnNotes = nil
			e.mode = ModeIdle
			e.log.WithField("mapping", e.learned).Info("pad mapping learned")
			break
		}
	}
	e.discardKeyboardInput()
	return dirty
}

// LearnProgress returns how many pads have been learned in the active
// learn session.
func (e *Engine) LearnProgress() []uint8 {
	return append([]uint8(nil), e.learnNotes...)
}

// PendingSlot reports which trigger slot the single-note flow is waiting to
// reassign, once a pad hit has resolved one.
func (e *Engine) PendingSlot() (int, bool) {
	return e.pendingSlot, e.hasPending
}

func (e *Engine) tickSingle(now time.Time, modNotes []midiio.Event) bool {
	dirty := false

	if !e.hasPending {
		for _, ev := range modNotes {
			if ev.Velocity < minTriggerVelocity {
				continue
			}
			if now.Sub(e.lastHit) < triggerDebounce {
				continue
			}
			e.lastHit = now
			slot, ok := e.resolveTriggerSlot(ev.Note)
			if !ok {
				e.log.WithField("note", ev.Note).Info("trigger note maps to no known slot, ignoring")
				continue
			}
			e.pendingSlot = slot
			e.hasPending = true
			dirty = true
			e.log.WithFields(logrus.Fields{
				"pad":  trigger.SlotName(slot),
				"note": trigger.NoteName(ev.Note),
			}).Info("selected pad for replacement")
			break
		}
	}

	keyEvents := e.transport.ReceivePending()
	if !e.hasPending {
		return dirty
	}
	for _, ev := range keyEvents {
		if ev.Type != midiio.EventNoteOn || ev.Velocity == 0 {
			continue
		}
		e.completeSingle(e.pendingSlot, ev.Note)
		dirty = true
		break
	}
	return dirty
}

// resolveTriggerSlot finds which pad a trigger hit refers to: known
// device state first, the learned mapping second, factory table last.
func (e *Engine) resolveTriggerSlot(note uint8) (int, bool) {
	if slot, ok := trigger.MapTriggerNote(note, e.device.State(), nil); ok {
		return slot, true
	}
	return trigger.MapTriggerNote(note, e.learned, e.fallback)
}

func (e *Engine) completeSingle(slot int, note uint8) {
	defer func() {
		e.hasPending = false
		e.mode = ModeIdle
	}()

	changes := map[int]uint8{slot: note & 0x7F}
	frame, err := e.device.Codec().BuildPartialFrame(e.device.State(), changes)
	if err != nil {
		e.lastErr = err
		e.log.WithError(err).Warn("single-note edit failed")
		return
	}
	if !e.transport.Send(frame) {
		e.log.Warn("send failed, module state unchanged")
		return
	}
	if prev := e.device.State(); prev != nil {
		e.history.PushMapping(prev)
	}
	if _, err := e.device.WritePartial(changes); err != nil {
		e.log.WithError(err).Error("committing single-note state failed")
		return
	}
	if e.learned != nil && slot < len(e.learned) {
		e.learned[slot] = note & 0x7F
	}
	e.lastSent = e.device.State()
	e.lastCaptured = e.device.State()
	e.log.WithFields(logrus.Fields{
		"pad":  trigger.SlotName(slot),
		"note": trigger.NoteName(note),
	}).Info("sent single-note change")
}

// ApplyMapping performs a direct full write, the non-interactive
// counterpart of a chord capture (used by the CLI and the API).
func (e *Engine) ApplyMapping(slots []uint8) error {
	frame, err := e.device.Codec().BuildFullFrame(slots)
	if err != nil {
		return err
	}
	if !e.transport.Send(frame) {
		return ErrSendFailed
	}
	if prev := e.device.State(); prev != nil {
		e.history.PushMapping(prev)
	}
	if _, err := e.device.WriteFull(slots); err != nil {
		return err
	}
	e.lastSent = e.device.State()
	return nil
}

// PatchNote rewrites one note throughout the cached kit dump and sends
// the patched dump. The pre-patch dump is snapshotted for undo. Returns
// whether a patched frame went out.
func (e *Engine) PatchNote(old, new uint8) bool {
	prev := e.device.RawDump()
	frame := e.device.PatchSingleNote(old, new)
	if frame == nil {
		return false
	}
	e.history.PushRawFrame(prev)
	if !e.transport.Send(frame) {
		e.log.Warn("send failed after patch; undo still holds the prior dump")
		return false
	}
	return true
}

// Undo replays the most recent snapshot through the transport. Returns
// whether a restore frame was sent; reasons for failure are logged.
func (e *Engine) Undo() bool {
	entry, ok := e.history.Pop()
	if !ok {
		e.log.Info("undo: no history")
		return false
	}
	switch entry.Kind {
	case EntryMapping:
		frame, err := e.device.WriteFull(entry.Mapping)
		if err != nil {
			e.log.WithError(err).Warn("undo: rebuilding mapping frame failed")
			return false
		}
		if !e.transport.Send(frame) {
			e.log.Warn("undo: send failed")
			return false
		}
		e.lastSent = e.device.State()
		e.log.WithField("mapping", entry.Mapping).Info("undo: restored mapping")
		return true
	default:
		frame := e.device.RestoreRawFrame(entry.RawFrame)
		if frame == nil {
			e.log.Warn("undo: invalid raw frame snapshot")
			return false
		}
		if !e.transport.Send(frame) {
			e.log.Warn("undo: send failed")
			return false
		}
		e.log.Info("undo: restored raw kit dump")
		return true
	}
}

func containsNote(notes []uint8, note uint8) bool {
	for _, n := range notes {
		if n == note {
			return true
		}
	}
	return false
}
