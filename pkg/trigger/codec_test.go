package trigger

import (
	"errors"
	"testing"
)

func TestBuildFullFrameRoundTrip(t *testing.T) {
	c := NewDefaultCodec()
	slots := []uint8{40, 60, 50, 45}

	frame, err := c.BuildFullFrame(slots)
	if err != nil {
		t.Fatalf("BuildFullFrame() error = %v", err)
	}
	if len(frame) != TemplateLength {
		t.Errorf("frame length = %d, want %d", len(frame), TemplateLength)
	}

	got, err := c.ExtractSlots(frame)
	if err != nil {
		t.Fatalf("ExtractSlots() error = %v", err)
	}
	for i := range slots {
		if got[i] != slots[i] {
			t.Errorf("slot %d = %d, want %d", i, got[i], slots[i])
		}
	}
}

func TestBuildFullFrameValidation(t *testing.T) {
	c := NewDefaultCodec()

	tests := []struct {
		name    string
		slots   []uint8
		wantErr error
	}{
		{"too few", []uint8{36, 38, 42}, ErrInvalidSlotCount},
		{"too many", []uint8{36, 38, 42, 49, 51}, ErrInvalidSlotCount},
		{"note out of range", []uint8{36, 38, 42, 200}, ErrInvalidNoteValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.BuildFullFrame(tt.slots)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BuildFullFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildFullFrameLeavesTemplateIntact(t *testing.T) {
	c := NewDefaultCodec()

	first, err := c.BuildFullFrame([]uint8{10, 20, 30, 40})
	if err != nil {
		t.Fatalf("BuildFullFrame() error = %v", err)
	}
	first[NoteOffsets[0]] = 99

	second, err := c.BuildFullFrame([]uint8{36, 38, 42, 49})
	if err != nil {
		t.Fatalf("BuildFullFrame() error = %v", err)
	}
	if second[NoteOffsets[0]] != 36 {
		t.Errorf("template was mutated: slot 0 byte = %d, want 36", second[NoteOffsets[0]])
	}
}

func TestBuildPartialFrame(t *testing.T) {
	c := NewDefaultCodec()
	base := []uint8{36, 38, 42, 49}

	frame, err := c.BuildPartialFrame(base, map[int]uint8{SlotSnare: 61})
	if err != nil {
		t.Fatalf("BuildPartialFrame() error = %v", err)
	}

	got, err := c.ExtractSlots(frame)
	if err != nil {
		t.Fatalf("ExtractSlots() error = %v", err)
	}
	want := []uint8{36, 61, 42, 49}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuildPartialFrameMatchesFull(t *testing.T) {
	c := NewDefaultCodec()
	base := []uint8{36, 38, 42, 49}

	partial, err := c.BuildPartialFrame(base, map[int]uint8{SlotKick: 24})
	if err != nil {
		t.Fatalf("BuildPartialFrame() error = %v", err)
	}
	full, err := c.BuildFullFrame([]uint8{24, 38, 42, 49})
	if err != nil {
		t.Fatalf("BuildFullFrame() error = %v", err)
	}

	if len(partial) != len(full) {
		t.Fatalf("frame lengths differ: %d vs %d", len(partial), len(full))
	}
	for i := range partial {
		if partial[i] != full[i] {
			t.Errorf("byte %d: partial = 0x%02X, full = 0x%02X", i, partial[i], full[i])
		}
	}
}

func TestBuildPartialFrameErrors(t *testing.T) {
	c := NewDefaultCodec()

	tests := []struct {
		name    string
		base    []uint8
		changes map[int]uint8
		wantErr error
	}{
		{"nil base", nil, map[int]uint8{0: 36}, ErrUnknownBaseState},
		{"short base", []uint8{36, 38}, map[int]uint8{0: 36}, ErrInvalidSlotCount},
		{"bad slot index", []uint8{36, 38, 42, 49}, map[int]uint8{7: 36}, ErrInvalidSlotIndex},
		{"bad note", []uint8{36, 38, 42, 49}, map[int]uint8{0: 200}, ErrInvalidNoteValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.BuildPartialFrame(tt.base, tt.changes)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BuildPartialFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractSlotsFrameTooShort(t *testing.T) {
	c := NewDefaultCodec()
	_, err := c.ExtractSlots(make([]byte, 12))
	if !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("ExtractSlots() error = %v, want %v", err, ErrFrameTooShort)
	}
}

func TestMapTriggerNote(t *testing.T) {
	known := []uint8{60, 62, 64, 65}
	fallback := DefaultFallbackTable()

	tests := []struct {
		name     string
		note     uint8
		known    []uint8
		fallback map[uint8]int
		wantSlot int
		wantOK   bool
	}{
		{"known state match", 64, known, fallback, SlotHiHat, true},
		{"fallback match", 38, known, fallback, SlotSnare, true},
		{"no match", 99, known, fallback, 0, false},
		{"nil state fallback only", 36, nil, fallback, SlotKick, true},
		{"nil everything", 36, nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := MapTriggerNote(tt.note, tt.known, tt.fallback)
			if ok != tt.wantOK || slot != tt.wantSlot {
				t.Errorf("MapTriggerNote(%d) = (%d, %v), want (%d, %v)",
					tt.note, slot, ok, tt.wantSlot, tt.wantOK)
			}
		})
	}
}

func TestNewCodecRejectsBadOffsets(t *testing.T) {
	if _, err := NewCodec(make([]byte, 10), []int{4, 12}); err == nil {
		t.Error("NewCodec() with out-of-range offset: error = nil, want error")
	}
}
