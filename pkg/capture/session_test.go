package capture

import (
	"testing"
	"time"

	"github.com/mty/chordtokit/pkg/trigger"
)

func TestSessionOfferDeduplicates(t *testing.T) {
	s := NewSession(DefaultPolicy())
	now := time.Now()

	if !s.Offer(60, now) {
		t.Error("Offer(60) first = false, want true")
	}
	if s.Offer(60, now) {
		t.Error("Offer(60) repeat = true, want false")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSessionOfferAllowsDuplicates(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowDuplicates = true
	s := NewSession(policy)
	now := time.Now()

	s.Offer(60, now)
	if !s.Offer(60, now) {
		t.Error("Offer(60) repeat = false, want true with duplicates allowed")
	}
	if s.Progress() != 2 {
		t.Errorf("Progress() = %d, want 2", s.Progress())
	}
}

func TestSessionResolveIncomplete(t *testing.T) {
	s := NewSession(DefaultPolicy())
	now := time.Now()

	s.Offer(60, now)
	s.Offer(62, now)
	if got := s.Resolve(); got != nil {
		t.Errorf("Resolve() = %v, want nil while incomplete", got)
	}
}

func TestSessionResolveRemap(t *testing.T) {
	// Kick gets the lowest note, snare the highest, hi-hat the second
	// highest, ride the third.
	s := NewSession(DefaultPolicy())
	now := time.Now()

	for _, n := range []uint8{60, 40, 50, 45} {
		s.Offer(n, now)
	}

	got := s.Resolve()
	if got == nil {
		t.Fatal("Resolve() = nil, want assignment")
	}
	want := []uint8{40, 60, 50, 45}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %d, want %d", trigger.SlotName(i), got[i], want[i])
		}
	}
}

func TestSessionResolveDuplicatesArrivalOrder(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowDuplicates = true
	s := NewSession(policy)
	now := time.Now()

	for _, n := range []uint8{60, 60, 45, 45} {
		s.Offer(n, now)
	}

	got := s.Resolve()
	if got == nil {
		t.Fatal("Resolve() = nil, want assignment")
	}
	// desc: 60 60 45 45
	want := []uint8{45, 60, 60, 45}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %d, want %d", trigger.SlotName(i), got[i], want[i])
		}
	}
}

func TestSessionResolveOctaveDown(t *testing.T) {
	tests := []struct {
		name  string
		notes []uint8
		want  []uint8
	}{
		{"lowest drops an octave", []uint8{60, 40, 50, 45}, []uint8{28, 60, 50, 45}},
		{"floored at zero", []uint8{60, 5, 50, 45}, []uint8{0, 60, 50, 45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			policy.OctaveDownLowest = true
			s := NewSession(policy)
			now := time.Now()

			for _, n := range tt.notes {
				s.Offer(n, now)
			}
			got := s.Resolve()
			if got == nil {
				t.Fatal("Resolve() = nil, want assignment")
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("%s = %d, want %d", trigger.SlotName(i), got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSessionTimeout(t *testing.T) {
	s := NewSession(DefaultPolicy())
	start := time.Now()

	s.Offer(60, start)
	s.Offer(62, start)

	if s.CheckTimeout(start.Add(time.Second)) {
		t.Error("CheckTimeout() = true before the timeout elapsed")
	}
	if !s.CheckTimeout(start.Add(6 * time.Second)) {
		t.Error("CheckTimeout() = false after the timeout elapsed")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after timeout, want 0", s.Len())
	}

	// An empty bucket never times out.
	if s.CheckTimeout(start.Add(time.Hour)) {
		t.Error("CheckTimeout() = true on empty bucket")
	}
}

func TestSessionSetPolicyClearsBucket(t *testing.T) {
	s := NewSession(DefaultPolicy())
	s.Offer(60, time.Now())

	policy := DefaultPolicy()
	policy.AllowDuplicates = true
	s.SetPolicy(policy)

	if s.Len() != 0 {
		t.Errorf("Len() = %d after SetPolicy, want 0", s.Len())
	}
}
