// Package trigger provides the SysEx frame codec and device state model
// for a 4-pad drum-trigger module.
package trigger

import "strconv"

// Pad slot indices. The module's note-to-pad table is index-significant:
// each slot corresponds to one fixed physical trigger pad.
const (
	SlotKick = iota
	SlotSnare
	SlotHiHat
	SlotRide
	SlotCount
)

// SysEx framing bytes. Frames handled here are payloads only; the
// transport adds F0/F7 on send.
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7
)

// Frame geometry for the module's configuration SysEx.
const (
	TemplateLength  = 90 // baseline kit frame, without F0/F7
	KitDumpLength   = 76 // full kit dump emitted by the module front panel
	ParamDumpLength = 16 // parameter dump, carries no slot data
)

// Header opcode bytes identifying dump frames, at fixed positions 7..9.
const (
	headerOffset = 7

	KitDump    = 0x40
	ParamDump  = 0x21
	dumpPrefix = 0x02
)

// NoteOffsets are the byte positions of the four slot values inside the
// template frame. Each trigger descriptor is a run of interleaved bytes,
// so consecutive slots sit 6 bytes apart.
var NoteOffsets = []int{11, 17, 23, 29}

// KitDumpNoteOffsets are the note byte positions inside a full kit dump.
// The module has ten trigger inputs at the same stride; the first four
// carry the pad slots.
var KitDumpNoteOffsets = []int{11, 17, 23, 29, 35, 41, 47, 53, 59, 65}

// DefaultFallbackTable maps the module's factory trigger notes to slot
// indices, used when no live state or learned mapping can resolve a hit.
func DefaultFallbackTable() map[uint8]int {
	return map[uint8]int{
		36: SlotKick,
		38: SlotSnare,
		42: SlotHiHat,
		49: SlotRide,
	}
}

// SlotName returns the pad name for a slot index.
func SlotName(slot int) string {
	switch slot {
	case SlotKick:
		return "KICK"
	case SlotSnare:
		return "SNARE"
	case SlotHiHat:
		return "HI-HAT"
	case SlotRide:
		return "RIDE"
	default:
		return "?"
	}
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName formats a MIDI note number like "F#4". The octave index is
// note/12 without the usual -1, matching the module's own numbering.
func NoteName(note uint8) string {
	n := note & 0x7F
	return noteNames[n%12] + strconv.Itoa(int(n/12))
}

// DefaultTemplate returns a fresh copy of the baseline kit frame. The
// header carries the manufacturer/model bytes and the kit-write opcode;
// slot descriptors start after it.
func DefaultTemplate() []byte {
	t := make([]byte, TemplateLength)
	copy(t, []byte{
		0x00, 0x00, 0x0E, // manufacturer ID
		0x20, 0x00, // model
		0x00,       // device ID
		0x00,       // kit number
		dumpPrefix, // opcode triple
		0x00,
		KitDump,
	})
	// Factory pad notes so a template frame is usable as-is.
	defaults := []uint8{36, 38, 42, 49}
	for i, off := range NoteOffsets {
		t[off] = defaults[i]
	}
	return t
}

// ClassifyFrame reports what kind of dump a raw payload is, keyed on
// length plus the opcode triple at the header positions.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameKitDump
	FrameParamDump
)

func ClassifyFrame(raw []byte) FrameKind {
	if len(raw) <= headerOffset+2 {
		return FrameUnknown
	}
	if raw[headerOffset] != dumpPrefix || raw[headerOffset+1] != 0x00 {
		return FrameUnknown
	}
	switch {
	case len(raw) == KitDumpLength && raw[headerOffset+2] == KitDump:
		return FrameKitDump
	case len(raw) == ParamDumpLength && raw[headerOffset+2] == ParamDump:
		return FrameParamDump
	default:
		return FrameUnknown
	}
}
