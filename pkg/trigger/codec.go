package trigger

import (
	"errors"
	"fmt"
)

// Codec errors. All are caller-recoverable; the polling loop logs and
// keeps going.
var (
	ErrInvalidSlotCount = errors.New("invalid slot count")
	ErrInvalidNoteValue = errors.New("invalid note value")
	ErrInvalidSlotIndex = errors.New("invalid slot index")
	ErrFrameTooShort    = errors.New("frame too short")
	ErrUnknownBaseState = errors.New("module state unknown: run a full capture or sync first")
)

// Codec translates between slot assignments and binary frames. It holds
// the immutable template and the slot byte offsets; it performs no I/O.
type Codec struct {
	template []byte
	offsets  []int
}

// NewCodec validates that every offset lies inside the template.
func NewCodec(template []byte, offsets []int) (*Codec, error) {
	for _, off := range offsets {
		if off < 0 || off >= len(template) {
			return nil, fmt.Errorf("offset %d outside template of %d bytes", off, len(template))
		}
	}
	c := &Codec{
		template: make([]byte, len(template)),
		offsets:  make([]int, len(offsets)),
	}
	copy(c.template, template)
	copy(c.offsets, offsets)
	return c, nil
}

// NewDefaultCodec builds a codec over the built-in template. An invalid
// built-in offset table is a programmer error, hence the panic.
func NewDefaultCodec() *Codec {
	c, err := NewCodec(DefaultTemplate(), NoteOffsets)
	if err != nil {
		panic(err)
	}
	return c
}

// Slots returns the number of configurable slots.
func (c *Codec) Slots() int {
	return len(c.offsets)
}

// TemplateLen returns the frame length this codec produces.
func (c *Codec) TemplateLen() int {
	return len(c.template)
}

// BuildFullFrame copies the template and writes every slot value at its
// offset, masked to 7 bits.
func (c *Codec) BuildFullFrame(slots []uint8) ([]byte, error) {
	if len(slots) != len(c.offsets) {
		return nil, fmt.Errorf("%w: need exactly %d notes, got %d", ErrInvalidSlotCount, len(c.offsets), len(slots))
	}
	for _, n := range slots {
		if n > 127 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidNoteValue, n)
		}
	}
	buf := make([]byte, len(c.template))
	copy(buf, c.template)
	for i, off := range c.offsets {
		buf[off] = slots[i] & 0x7F
	}
	return buf, nil
}

// BuildPartialFrame merges changes into a known base state and delegates
// to BuildFullFrame, so partial and full writes share one path.
func (c *Codec) BuildPartialFrame(base []uint8, changes map[int]uint8) ([]byte, error) {
	if base == nil {
		return nil, ErrUnknownBaseState
	}
	if len(base) != len(c.offsets) {
		return nil, fmt.Errorf("%w: base state has %d notes, want %d", ErrInvalidSlotCount, len(base), len(c.offsets))
	}
	merged := make([]uint8, len(base))
	copy(merged, base)
	for idx, note := range changes {
		if idx < 0 || idx >= len(c.offsets) {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSlotIndex, idx)
		}
		if note > 127 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidNoteValue, note)
		}
		merged[idx] = note
	}
	return c.BuildFullFrame(merged)
}

// ExtractSlots reads the slot values back out of a frame.
func (c *Codec) ExtractSlots(frame []byte) ([]uint8, error) {
	for _, off := range c.offsets {
		if off >= len(frame) {
			return nil, fmt.Errorf("%w: %d bytes, need offset %d", ErrFrameTooShort, len(frame), off)
		}
	}
	slots := make([]uint8, len(c.offsets))
	for i, off := range c.offsets {
		slots[i] = frame[off] & 0x7F
	}
	return slots, nil
}

// MapTriggerNote resolves which slot a trigger hit refers to: positional
// match in the known state first, then the fallback table. The second
// return is false when neither resolves; the caller skips that note.
func MapTriggerNote(note uint8, known []uint8, fallback map[uint8]int) (int, bool) {
	for i, n := range known {
		if n == note {
			return i, true
		}
	}
	if fallback != nil {
		if idx, ok := fallback[note]; ok {
			return idx, true
		}
	}
	return 0, false
}
