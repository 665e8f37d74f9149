package capture

import (
	"bytes"
	"testing"
)

func TestHistoryPushPop(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)

	h.PushMapping([]uint8{36, 38, 42, 49})
	h.PushMapping([]uint8{40, 60, 50, 45})

	entry, ok := h.Pop()
	if !ok {
		t.Fatal("Pop() ok = false, want true")
	}
	if entry.Kind != EntryMapping || !bytes.Equal(entry.Mapping, []uint8{40, 60, 50, 45}) {
		t.Errorf("Pop() = %+v, want most recent mapping", entry)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestHistoryPopEmpty(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)
	if _, ok := h.Pop(); ok {
		t.Error("Pop() on empty history ok = true, want false")
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)

	for i := uint8(0); i < 5; i++ {
		h.PushMapping([]uint8{i, 38, 42, 49})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	// Oldest entries were evicted: the remaining stack is 2, 3, 4.
	entries := h.Entries()
	if entries[0].Mapping[0] != 2 {
		t.Errorf("oldest surviving entry starts with %d, want 2", entries[0].Mapping[0])
	}
}

func TestHistorySuppressesDuplicateTop(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)

	h.PushMapping([]uint8{36, 38, 42, 49})
	h.PushMapping([]uint8{36, 38, 42, 49})

	if h.Len() != 1 {
		t.Errorf("Len() = %d after duplicate push, want 1", h.Len())
	}

	// A raw-frame entry with the same bytes is a different kind, so it
	// is not a duplicate.
	h.PushRawFrame([]byte{36, 38, 42, 49})
	if h.Len() != 2 {
		t.Errorf("Len() = %d after cross-kind push, want 2", h.Len())
	}
}

func TestHistoryIgnoresEmptySnapshots(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)
	h.PushMapping(nil)
	h.PushRawFrame(nil)
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}

func TestHistoryEntriesAreCopies(t *testing.T) {
	h := NewHistory(DefaultHistoryLimit)
	h.PushMapping([]uint8{36, 38, 42, 49})

	entries := h.Entries()
	entries[0].Mapping[0] = 99

	entry, _ := h.Pop()
	if entry.Mapping[0] != 36 {
		t.Error("mutating Entries() result changed stored snapshot")
	}
}
