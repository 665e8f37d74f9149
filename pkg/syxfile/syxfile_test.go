package syxfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mty/chordtokit/pkg/trigger"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want [][]byte
	}{
		{
			"single frame",
			[]byte{0xF0, 0x01, 0x02, 0x03, 0xF7},
			[][]byte{{0x01, 0x02, 0x03}},
		},
		{
			"two frames with junk between",
			[]byte{0x90, 0x3C, 0xF0, 0x01, 0xF7, 0x80, 0x3C, 0xF0, 0x02, 0xF7},
			[][]byte{{0x01}, {0x02}},
		},
		{
			"unterminated frame dropped",
			[]byte{0xF0, 0x01, 0x02},
			nil,
		},
		{
			"no frames",
			[]byte{0x90, 0x3C, 0x64},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.data)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kit.syx")
	payload := trigger.DefaultTemplate()

	if err := WriteFrame(path, payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != trigger.SysExStart || raw[len(raw)-1] != trigger.SysExEnd {
		t.Error("file is not wrapped in F0..F7")
	}

	got, err := ReadFirstFrame(path)
	if err != nil {
		t.Fatalf("ReadFirstFrame() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFirstFrame() = %v, want %v", got, payload)
	}
}

func TestReadFirstFrameNoFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.syx")
	if err := os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadFirstFrame(path)
	if !errors.Is(err, ErrNoFrame) {
		t.Errorf("ReadFirstFrame() error = %v, want %v", err, ErrNoFrame)
	}
}

func TestWriteFrameRejectsHighBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.syx")
	if err := WriteFrame(path, []byte{0x01, 0x80, 0x03}); err == nil {
		t.Error("WriteFrame() with 8-bit byte: error = nil, want error")
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want []int
	}{
		{"identical", []byte{1, 2, 3}, []byte{1, 2, 3}, nil},
		{"one byte", []byte{1, 2, 3}, []byte{1, 9, 3}, []int{1}},
		{"several bytes", []byte{1, 2, 3, 4}, []byte{9, 2, 9, 4}, []int{0, 2}},
		{"length mismatch", []byte{1, 2}, []byte{1, 2, 3}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Diff(tt.a, tt.b); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}
