// Package hw wraps the optional hardware inputs. The only one on a
// desktop build is the footswitch, exposed to Linux as an evdev device.
package hw

import (
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/sirupsen/logrus"
)

const debounceWindow = 50 * time.Millisecond

// Footswitch reads press edges from an input event device. Reads happen
// on a background goroutine (evdev reads block); PressedEdge drains the
// queued edges without blocking, true exactly once per physical press.
type Footswitch struct {
	dev       *evdev.InputDevice
	log       *logrus.Logger
	activeLow bool

	mu         sync.Mutex
	pending    int
	lastChange time.Time
	closed     bool
}

// OpenFootswitch opens the event device at path. activeLow flips the
// press polarity for normally-closed switches.
func OpenFootswitch(path string, activeLow bool, log *logrus.Logger) (*Footswitch, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	f := &Footswitch{dev: dev, log: log, activeLow: activeLow}
	go f.readLoop()
	log.WithField("device", path).Info("footswitch opened")
	return f, nil
}

func (f *Footswitch) readLoop() {
	for {
		ev, err := f.dev.ReadOne()
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if !closed {
				f.log.WithError(err).Warn("footswitch read failed")
			}
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		pressed := ev.Value == 1
		if f.activeLow {
			// Active-low switches report release as the key-down event.
			pressed = ev.Value == 0
		}
		if !pressed {
			continue
		}
		f.mu.Lock()
		now := time.Now()
		if now.Sub(f.lastChange) >= debounceWindow {
			f.pending++
			f.lastChange = now
		}
		f.mu.Unlock()
	}
}

// PressedEdge reports one queued press, at most one per call.
func (f *Footswitch) PressedEdge() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
		return true
	}
	return false
}

// Close releases the device; the read loop exits on its next read.
func (f *Footswitch) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.dev.Close()
}
