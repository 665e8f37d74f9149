// Package midiio implements the MIDI transport adapter over
// gitlab.com/gomidi/midi/v2 with the rtmidi driver.
package midiio

// EventType tags an incoming MIDI event.
type EventType int

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventSysEx
	EventOther
)

// Event is one queued incoming MIDI event. Data is only set for SysEx
// events and holds the payload without framing bytes.
type Event struct {
	Type     EventType
	Channel  uint8
	Note     uint8
	Velocity uint8
	Data     []byte
}
