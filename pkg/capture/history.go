package capture

import "bytes"

// EntryKind distinguishes the two mutation paths undo has to reverse:
// offset-based slot writes and raw-byte dump patches. Normalizing both
// into one shape would lose fields the slot codec does not model.
type EntryKind int

const (
	EntryMapping EntryKind = iota
	EntryRawFrame
)

// Entry is one reversible snapshot, taken before a mutation.
type Entry struct {
	Kind     EntryKind
	Mapping  []uint8 // set for EntryMapping
	RawFrame []byte  // set for EntryRawFrame
}

func (e Entry) equal(other Entry) bool {
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case EntryMapping:
		return bytes.Equal(e.Mapping, other.Mapping)
	default:
		return bytes.Equal(e.RawFrame, other.RawFrame)
	}
}

// DefaultHistoryLimit bounds the undo stack.
const DefaultHistoryLimit = 8

// History is a bounded stack of undo snapshots, most-recent-last.
type History struct {
	limit   int
	entries []Entry
}

// NewHistory creates a history bounded at limit (minimum 1).
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}
	return &History{limit: limit}
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Push appends an entry. Pushing a duplicate of the current top is a
// no-op; exceeding the limit evicts the oldest entry.
func (h *History) Push(entry Entry) {
	if n := len(h.entries); n > 0 && h.entries[n-1].equal(entry) {
		return
	}
	h.entries = append(h.entries, cloneEntry(entry))
	if len(h.entries) > h.limit {
		h.entries = h.entries[1:]
	}
}

// PushMapping snapshots a slot assignment.
func (h *History) PushMapping(slots []uint8) {
	if len(slots) == 0 {
		return
	}
	h.Push(Entry{Kind: EntryMapping, Mapping: slots})
}

// PushRawFrame snapshots raw dump bytes.
func (h *History) PushRawFrame(raw []byte) {
	if len(raw) == 0 {
		return
	}
	h.Push(Entry{Kind: EntryRawFrame, RawFrame: raw})
}

// Pop removes and returns the most recent entry.
func (h *History) Pop() (Entry, bool) {
	n := len(h.entries)
	if n == 0 {
		return Entry{}, false
	}
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e, true
}

// Entries returns a copy of the stack, oldest first.
func (h *History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e Entry) Entry {
	c := Entry{Kind: e.Kind}
	if e.Mapping != nil {
		c.Mapping = append([]uint8(nil), e.Mapping...)
	}
	if e.RawFrame != nil {
		c.RawFrame = append([]byte(nil), e.RawFrame...)
	}
	return c
}
