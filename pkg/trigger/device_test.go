package trigger

import (
	"errors"
	"testing"
)

// makeKitDump builds a synthetic kit dump with the given pad notes in
// the first four trigger positions and 50+i in the remaining six.
func makeKitDump(pads []uint8) []byte {
	raw := make([]byte, KitDumpLength)
	raw[headerOffset] = dumpPrefix
	raw[headerOffset+1] = 0x00
	raw[headerOffset+2] = KitDump
	for i, off := range KitDumpNoteOffsets {
		if i < len(pads) {
			raw[off] = pads[i]
		} else {
			raw[off] = uint8(50 + i)
		}
	}
	return raw
}

func makeParamDump() []byte {
	raw := make([]byte, ParamDumpLength)
	raw[headerOffset] = dumpPrefix
	raw[headerOffset+1] = 0x00
	raw[headerOffset+2] = ParamDump
	return raw
}

func TestClassifyFrame(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want FrameKind
	}{
		{"kit dump", makeKitDump([]uint8{36, 38, 42, 49}), FrameKitDump},
		{"param dump", makeParamDump(), FrameParamDump},
		{"empty", nil, FrameUnknown},
		{"short", []byte{0x00, 0x00, 0x0E}, FrameUnknown},
		{"kit opcode wrong length", makeKitDump([]uint8{36, 38, 42, 49})[:40], FrameUnknown},
		{"template frame", DefaultTemplate(), FrameUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFrame(tt.raw); got != tt.want {
				t.Errorf("ClassifyFrame() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceStateStartsUnknown(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	if d.State() != nil {
		t.Errorf("State() = %v, want nil before any write or dump", d.State())
	}
	if d.HasRawDump() {
		t.Error("HasRawDump() = true, want false")
	}
}

func TestDeviceWriteFullCommits(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	slots := []uint8{40, 60, 50, 45}

	frame, err := d.WriteFull(slots)
	if err != nil {
		t.Fatalf("WriteFull() error = %v", err)
	}
	if len(frame) != TemplateLength {
		t.Errorf("frame length = %d, want %d", len(frame), TemplateLength)
	}

	got := d.State()
	for i := range slots {
		if got[i] != slots[i] {
			t.Errorf("State()[%d] = %d, want %d", i, got[i], slots[i])
		}
	}
}

func TestDeviceWriteFullInvalidLeavesState(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	if _, err := d.WriteFull([]uint8{36, 38}); !errors.Is(err, ErrInvalidSlotCount) {
		t.Errorf("WriteFull() error = %v, want %v", err, ErrInvalidSlotCount)
	}
	if d.State() != nil {
		t.Errorf("State() = %v, want nil after failed write", d.State())
	}
}

func TestDeviceWritePartialNeedsKnownState(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	if _, err := d.WritePartial(map[int]uint8{SlotKick: 24}); !errors.Is(err, ErrUnknownBaseState) {
		t.Errorf("WritePartial() error = %v, want %v", err, ErrUnknownBaseState)
	}
}

func TestDeviceWritePartialMerges(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	if _, err := d.WriteFull([]uint8{36, 38, 42, 49}); err != nil {
		t.Fatalf("WriteFull() error = %v", err)
	}
	if _, err := d.WritePartial(map[int]uint8{SlotRide: 51}); err != nil {
		t.Fatalf("WritePartial() error = %v", err)
	}

	want := []uint8{36, 38, 42, 51}
	got := d.State()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("State()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDeviceStateIsACopy(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	if _, err := d.WriteFull([]uint8{36, 38, 42, 49}); err != nil {
		t.Fatalf("WriteFull() error = %v", err)
	}

	got := d.State()
	got[0] = 99
	if d.State()[0] != 36 {
		t.Error("mutating the returned slice changed internal state")
	}
}

func TestDeviceIngestKitDump(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	d.IngestRawFrame(makeKitDump([]uint8{36, 38, 42, 49}))

	if !d.HasRawDump() {
		t.Fatal("HasRawDump() = false after kit dump")
	}
	want := []uint8{36, 38, 42, 49}
	got := d.State()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("State()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDeviceIngestParamDumpIgnored(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	d.IngestRawFrame(makeParamDump())

	if d.HasRawDump() {
		t.Error("HasRawDump() = true after param dump, want false")
	}
	if d.State() != nil {
		t.Errorf("State() = %v, want nil", d.State())
	}
}

func TestPatchSingleNote(t *testing.T) {
	// The old note appears both on a pad and on a spare trigger input;
	// both positions must change.
	d := NewDevice(NewDefaultCodec(), nil)
	dump := makeKitDump([]uint8{36, 38, 42, 49})
	dump[KitDumpNoteOffsets[7]] = 36
	d.IngestRawFrame(dump)

	frame := d.PatchSingleNote(36, 48)
	if frame == nil {
		t.Fatal("PatchSingleNote() = nil, want frame")
	}
	if frame[KitDumpNoteOffsets[0]] != 48 {
		t.Errorf("pad position = %d, want 48", frame[KitDumpNoteOffsets[0]])
	}
	if frame[KitDumpNoteOffsets[7]] != 48 {
		t.Errorf("spare position = %d, want 48", frame[KitDumpNoteOffsets[7]])
	}
	if d.State()[SlotKick] != 48 {
		t.Errorf("State()[kick] = %d, want 48", d.State()[SlotKick])
	}
}

func TestPatchSingleNoteRefusals(t *testing.T) {
	t.Run("no cached dump", func(t *testing.T) {
		d := NewDevice(NewDefaultCodec(), nil)
		if frame := d.PatchSingleNote(36, 48); frame != nil {
			t.Errorf("PatchSingleNote() = %v, want nil", frame)
		}
	})

	t.Run("note absent", func(t *testing.T) {
		d := NewDevice(NewDefaultCodec(), nil)
		d.IngestRawFrame(makeKitDump([]uint8{36, 38, 42, 49}))
		if frame := d.PatchSingleNote(99, 48); frame != nil {
			t.Errorf("PatchSingleNote() = %v, want nil", frame)
		}
	})

	t.Run("no-op patch", func(t *testing.T) {
		d := NewDevice(NewDefaultCodec(), nil)
		d.IngestRawFrame(makeKitDump([]uint8{36, 38, 42, 49}))
		if frame := d.PatchSingleNote(36, 36); frame != nil {
			t.Errorf("PatchSingleNote() = %v, want nil", frame)
		}
	})
}

func TestRestoreRawFrame(t *testing.T) {
	d := NewDevice(NewDefaultCodec(), nil)
	snapshot := makeKitDump([]uint8{36, 38, 42, 49})

	frame := d.RestoreRawFrame(snapshot)
	if frame == nil {
		t.Fatal("RestoreRawFrame() = nil, want frame")
	}
	if d.State()[SlotSnare] != 38 {
		t.Errorf("State()[snare] = %d, want 38", d.State()[SlotSnare])
	}
	if !d.HasRawDump() {
		t.Error("HasRawDump() = false after restore")
	}
}

func TestNoteName(t *testing.T) {
	tests := []struct {
		note uint8
		want string
	}{
		{0, "C0"},
		{36, "C3"},
		{38, "D3"},
		{42, "F#3"},
		{49, "C#4"},
		{127, "G10"},
	}

	for _, tt := range tests {
		if got := NoteName(tt.note); got != tt.want {
			t.Errorf("NoteName(%d) = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestSlotName(t *testing.T) {
	tests := []struct {
		slot int
		want string
	}{
		{SlotKick, "KICK"},
		{SlotSnare, "SNARE"},
		{SlotHiHat, "HI-HAT"},
		{SlotRide, "RIDE"},
		{9, "?"},
	}

	for _, tt := range tests {
		if got := SlotName(tt.slot); got != tt.want {
			t.Errorf("SlotName(%d) = %q, want %q", tt.slot, got, tt.want)
		}
	}
}
