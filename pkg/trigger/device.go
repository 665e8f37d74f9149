package trigger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Device tracks the module's last-known slot assignment: the single
// source of truth for what the hardware currently holds, as far as this
// process knows. State starts unknown and becomes known on the first
// full write or ingested kit dump. It is session-scoped only.
type Device struct {
	codec *Codec
	log   *logrus.Logger

	state   []uint8 // nil = unknown
	rawDump []byte  // cached kit dump, nil = none
}

// NewDevice wraps a codec. A nil logger falls back to the standard one.
func NewDevice(codec *Codec, log *logrus.Logger) *Device {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Device{codec: codec, log: log}
}

// Codec exposes the underlying frame codec.
func (d *Device) Codec() *Codec {
	return d.codec
}

// State returns a copy of the last-known slot assignment, nil if unknown.
func (d *Device) State() []uint8 {
	if d.state == nil {
		return nil
	}
	out := make([]uint8, len(d.state))
	copy(out, d.state)
	return out
}

// SetState overrides the known state, for out-of-band syncs.
func (d *Device) SetState(slots []uint8) error {
	if len(slots) != d.codec.Slots() {
		return fmt.Errorf("%w: need exactly %d notes, got %d", ErrInvalidSlotCount, d.codec.Slots(), len(slots))
	}
	for _, n := range slots {
		if n > 127 {
			return fmt.Errorf("%w: %d", ErrInvalidNoteValue, n)
		}
	}
	d.commit(slots)
	return nil
}

// WriteFull builds a full frame and commits the new state. Besides
// ingestion this is the only path that moves state from unknown to known.
func (d *Device) WriteFull(slots []uint8) ([]byte, error) {
	frame, err := d.codec.BuildFullFrame(slots)
	if err != nil {
		return nil, err
	}
	d.commit(slots)
	return frame, nil
}

// WritePartial builds a frame with only the given slots changed relative
// to the known state, then commits the merged result.
func (d *Device) WritePartial(changes map[int]uint8) ([]byte, error) {
	frame, err := d.codec.BuildPartialFrame(d.state, changes)
	if err != nil {
		return nil, err
	}
	merged, err := d.codec.ExtractSlots(frame)
	if err != nil {
		return nil, err
	}
	d.commit(merged)
	return frame, nil
}

func (d *Device) commit(slots []uint8) {
	d.state = make([]uint8, len(slots))
	for i, n := range slots {
		d.state[i] = n & 0x7F
	}
}

// HasRawDump reports whether a kit dump has been cached.
func (d *Device) HasRawDump() bool {
	return d.rawDump != nil
}

// RawDump returns a copy of the cached kit dump, nil if none.
func (d *Device) RawDump() []byte {
	if d.rawDump == nil {
		return nil
	}
	out := make([]byte, len(d.rawDump))
	copy(out, d.rawDump)
	return out
}

// IngestRawFrame classifies an incoming SysEx payload. Kit dumps are
// cached and their slot values become the known state; parameter dumps
// and unrecognized frames are dropped without error, since the shared
// transport carries plenty of unrelated traffic.
func (d *Device) IngestRawFrame(raw []byte) {
	switch ClassifyFrame(raw) {
	case FrameKitDump:
		d.rawDump = make([]byte, len(raw))
		copy(d.rawDump, raw)
		slots := d.dumpSlots()
		if slots != nil {
			d.commit(slots)
		}
		d.log.WithFields(logrus.Fields{"len": len(raw), "slots": slots}).Info("ingested kit dump")
	case FrameParamDump:
		d.log.WithField("len", len(raw)).Debug("parameter dump ignored")
	default:
		d.log.WithField("len", len(raw)).Debug("unrecognized sysex frame ignored")
	}
}

// dumpSlots extracts the pad slots from the cached dump. The dump shares
// the template's note stride, so the first SlotCount note offsets apply.
func (d *Device) dumpSlots() []uint8 {
	if d.rawDump == nil {
		return nil
	}
	slots := make([]uint8, SlotCount)
	for i := 0; i < SlotCount; i++ {
		off := KitDumpNoteOffsets[i]
		if off >= len(d.rawDump) {
			return nil
		}
		slots[i] = d.rawDump[off] & 0x7F
	}
	return slots
}

// PatchSingleNote rewrites every known note byte in the cached dump that
// currently holds old, and returns the updated dump as a sendable frame.
// Returns nil when there is no cached dump, old is not present, or the
// patch would be a no-op; those are logged, not errors. On success the
// cache is mutated in place as the new current dump.
func (d *Device) PatchSingleNote(old, new uint8) []byte {
	if d.rawDump == nil {
		d.log.Warn("single-note patch: no cached kit dump")
		return nil
	}
	if old == new {
		d.log.WithField("note", old).Info("single-note patch: old == new, nothing to do")
		return nil
	}
	patched := 0
	for _, off := range KitDumpNoteOffsets {
		if off < len(d.rawDump) && d.rawDump[off] == old&0x7F {
			d.rawDump[off] = new & 0x7F
			patched++
		}
	}
	if patched == 0 {
		d.log.WithField("note", old).Warn("single-note patch: note not found in dump")
		return nil
	}
	if slots := d.dumpSlots(); slots != nil {
		d.commit(slots)
	}
	d.log.WithFields(logrus.Fields{"old": old, "new": new, "positions": patched}).Info("patched kit dump")
	return d.RawDump()
}

// RestoreRawFrame replaces the cached dump with a prior snapshot and
// returns a sendable copy. Used by undo for raw-frame entries, which may
// carry fields the slot codec does not model.
func (d *Device) RestoreRawFrame(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	d.rawDump = make([]byte, len(raw))
	copy(d.rawDump, raw)
	if slots := d.dumpSlots(); slots != nil {
		d.commit(slots)
	}
	return d.RawDump()
}
