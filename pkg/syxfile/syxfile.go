// Package syxfile reads and writes .syx dump files, the raw SysEx
// captures produced by librarian tools and by the module's dump button.
package syxfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/mty/chordtokit/pkg/trigger"
)

// ErrNoFrame is returned when a file contains no complete F0..F7 frame.
var ErrNoFrame = errors.New("no complete SysEx frame found")

// Split scans raw file bytes and returns every complete frame as a
// payload without the F0/F7 markers. Bytes outside frames are ignored.
func Split(data []byte) [][]byte {
	var frames [][]byte
	start := -1
	for i, b := range data {
		switch b {
		case trigger.SysExStart:
			start = i
		case trigger.SysExEnd:
			if start >= 0 {
				frames = append(frames, data[start+1:i])
				start = -1
			}
		}
	}
	return frames
}

// ReadFrames loads a .syx file and returns all frame payloads.
func ReadFrames(filename string) ([][]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read syx file: %w", err)
	}
	frames := Split(data)
	if len(frames) == 0 {
		return nil, ErrNoFrame
	}
	return frames, nil
}

// ReadFirstFrame loads a .syx file and returns its first frame payload.
func ReadFirstFrame(filename string) ([]byte, error) {
	frames, err := ReadFrames(filename)
	if err != nil {
		return nil, err
	}
	return frames[0], nil
}

// WriteFrame writes one frame payload to a .syx file, adding the F0/F7
// markers.
func WriteFrame(filename string, payload []byte) error {
	if err := Validate(payload); err != nil {
		return err
	}
	out := make([]byte, 0, len(payload)+2)
	out = append(out, trigger.SysExStart)
	out = append(out, payload...)
	out = append(out, trigger.SysExEnd)
	return os.WriteFile(filename, out, 0644)
}

// Validate checks that a payload holds only 7-bit data bytes.
func Validate(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("empty SysEx payload")
	}
	for i, b := range payload {
		if b > 127 {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i, b)
		}
	}
	return nil
}

// Diff returns the indices where two payloads differ, comparing up to
// the shorter length. A length mismatch is reported as one extra index
// at the shorter length.
func Diff(a, b []byte) []int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var diffs []int
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			diffs = append(diffs, i)
		}
	}
	if len(a) != len(b) {
		diffs = append(diffs, n)
	}
	return diffs
}
