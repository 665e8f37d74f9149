// Package capture implements the interactive note-collection engine:
// the bucket policy, the pad remap, the bounded undo history, and the
// per-tick orchestration that turns captured notes into frames.
package capture

import (
	"sort"
	"time"

	"github.com/mty/chordtokit/pkg/trigger"
)

// Policy configures one capture session. The original hardware UI grew
// a screen subclass per variant; here a single session type is
// parameterized instead.
type Policy struct {
	TargetCount      int
	AllowDuplicates  bool
	OctaveDownLowest bool
	Timeout          time.Duration
}

// DefaultPolicy matches the shipped behavior: four distinct notes,
// five-second staleness reset, no transposition.
func DefaultPolicy() Policy {
	return Policy{
		TargetCount: trigger.SlotCount,
		Timeout:     5 * time.Second,
	}
}

// Session owns the transient note bucket for one capture mode. Not
// shared; the engine is its only caller.
type Session struct {
	policy   Policy
	bucket   []uint8
	lastNote time.Time
}

// NewSession creates an empty session under the given policy.
func NewSession(policy Policy) *Session {
	if policy.TargetCount <= 0 {
		policy.TargetCount = trigger.SlotCount
	}
	return &Session{policy: policy}
}

// Policy returns the active policy.
func (s *Session) Policy() Policy {
	return s.policy
}

// SetPolicy swaps the policy and clears the bucket, so notes captured
// under different rules never mix.
func (s *Session) SetPolicy(policy Policy) {
	if policy.TargetCount <= 0 {
		policy.TargetCount = trigger.SlotCount
	}
	s.policy = policy
	s.Clear()
}

// Clear empties the bucket.
func (s *Session) Clear() {
	s.bucket = s.bucket[:0]
}

// Notes returns a copy of the bucket contents in arrival order.
func (s *Session) Notes() []uint8 {
	out := make([]uint8, len(s.bucket))
	copy(out, s.bucket)
	return out
}

// Len returns how many notes the bucket holds.
func (s *Session) Len() int {
	return len(s.bucket)
}

// Progress returns how many notes count toward completion: raw length
// under duplicates-allowed, unique count otherwise.
func (s *Session) Progress() int {
	if s.policy.AllowDuplicates {
		return len(s.bucket)
	}
	return len(s.uniqueFirstSeen())
}

// Offer adds a note under the duplicate policy. A note already present
// is dropped silently when duplicates are disallowed. Returns whether
// the note was accepted.
func (s *Session) Offer(note uint8, now time.Time) bool {
	note &= 0x7F
	if !s.policy.AllowDuplicates {
		for _, n := range s.bucket {
			if n == note {
				return false
			}
		}
	}
	s.bucket = append(s.bucket, note)
	s.lastNote = now
	return true
}

// CheckTimeout clears a non-empty bucket whose last accepted note is
// older than the policy timeout. Reports whether a reset happened; the
// session stays active either way.
func (s *Session) CheckTimeout(now time.Time) bool {
	if len(s.bucket) == 0 || s.policy.Timeout <= 0 {
		return false
	}
	if now.Sub(s.lastNote) > s.policy.Timeout {
		s.Clear()
		return true
	}
	return false
}

// Resolve attempts to turn the bucket into a final slot assignment.
// Returns nil while the bucket is incomplete. On success the caller is
// expected to clear the session.
//
// Resolution: duplicates-allowed mode takes the first TargetCount notes
// in arrival order; otherwise the bucket is deduped preserving
// first-seen order, sorted ascending, and truncated. The resolved notes
// are then remapped to pad order: kick gets the lowest, snare the
// highest, hi-hat the 2nd highest, ride the 3rd highest. This crossed
// assignment is a hardware-ergonomics convention, not a plain sort.
func (s *Session) Resolve() []uint8 {
	if len(s.bucket) < s.policy.TargetCount {
		return nil
	}

	var chord []uint8
	if s.policy.AllowDuplicates {
		chord = append(chord, s.bucket[:s.policy.TargetCount]...)
	} else {
		unique := s.uniqueFirstSeen()
		if len(unique) < s.policy.TargetCount {
			// Guarded against even though Offer already drops dupes.
			return nil
		}
		sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
		chord = unique[:s.policy.TargetCount]
	}

	desc := make([]uint8, len(chord))
	copy(desc, chord)
	sort.Slice(desc, func(i, j int) bool { return desc[i] > desc[j] })

	assignment := []uint8{
		desc[3], // kick: lowest
		desc[0], // snare: highest
		desc[1], // hi-hat: 2nd highest
		desc[2], // ride: 3rd highest
	}

	if s.policy.OctaveDownLowest {
		assignment = octaveDownLowest(assignment)
	}
	return assignment
}

func (s *Session) uniqueFirstSeen() []uint8 {
	seen := make(map[uint8]bool, len(s.bucket))
	out := make([]uint8, 0, len(s.bucket))
	for _, n := range s.bucket {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// octaveDownLowest transposes the lowest note in the assignment down one
// octave, floored at MIDI note 0.
func octaveDownLowest(assignment []uint8) []uint8 {
	if len(assignment) == 0 {
		return assignment
	}
	out := make([]uint8, len(assignment))
	copy(out, assignment)
	lowest := 0
	for i, n := range out {
		if n < out[lowest] {
			lowest = i
		}
	}
	if out[lowest] >= 12 {
		out[lowest] -= 12
	} else {
		out[lowest] = 0
	}
	return out
}
