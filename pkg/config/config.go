// Package config holds the persisted settings: port selection, capture
// policy flags, footswitch behavior, and UI animation tuning.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Footswitch capture modes.
const (
	FootswitchModeAll    = "all"    // full 4-note capture
	FootswitchModeSingle = "single" // single-note replacement
)

// Config is the flat settings store, serialized as JSON.
type Config struct {
	// MIDI port selection: exact names win, substrings are fallbacks.
	InputName      string `json:"midi_in_name"`
	InputSubstr    string `json:"midi_in_substr"`
	OutputName     string `json:"midi_out_name"`
	OutputSubstr   string `json:"midi_out_substr"`
	ModuleInName   string `json:"module_in_name"`
	ModuleInSubstr string `json:"module_in_substr"`

	// Capture behavior.
	AllowDuplicateNotes   bool    `json:"allow_duplicate_notes"`
	OctaveDownLowest      bool    `json:"octave_down_lowest"`
	CaptureTimeoutSeconds float64 `json:"capture_timeout_seconds"`
	UndoLimit             int     `json:"undo_limit"`

	// Footswitch.
	FootswitchMode      string `json:"footswitch_capture_mode"` // all | single
	FootswitchDevice    string `json:"footswitch_device"`
	FootswitchActiveLow bool   `json:"footswitch_active_low"`

	// Capture screen animation turn counts, per mode.
	SpiralTurns4Note  int `json:"spiral_turns_4_note"`
	SpiralTurnsSingle int `json:"spiral_turns_single"`
	SpiralTurnsLearn  int `json:"spiral_turns_learn"`
}

// Default returns the shipped defaults.
func Default() Config {
	return Config{
		InputSubstr:           "keystep",
		OutputSubstr:          "triggerio",
		ModuleInSubstr:        "triggerio",
		CaptureTimeoutSeconds: 5.0,
		UndoLimit:             8,
		FootswitchMode:        FootswitchModeAll,
		FootswitchActiveLow:   true,
		SpiralTurns4Note:      20,
		SpiralTurnsSingle:     16,
		SpiralTurnsLearn:      10,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chordtokit.json"
	}
	return filepath.Join(dir, "chordtokit", "config.json")
}

// Load reads a config file over the defaults. A missing or corrupt file
// yields plain defaults; settings should never stop the tool from
// starting.
func Load(path string) Config {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	cfg.normalize()
	return cfg
}

// Save writes the config atomically: temp file in the target directory,
// then rename.
func (c Config) Save(path string) error {
	c.normalize()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) normalize() {
	if c.CaptureTimeoutSeconds <= 0 {
		c.CaptureTimeoutSeconds = 5.0
	}
	if c.UndoLimit <= 0 {
		c.UndoLimit = 8
	}
	if c.FootswitchMode != FootswitchModeSingle {
		c.FootswitchMode = FootswitchModeAll
	}
}
