package midiio

import (
	"regexp"
	"strings"
)

var throughPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)midi\s+through`), // "Midi Through Port-0"
	regexp.MustCompile(`(?i)rtmidi`),         // "RtMidiIn Client", "RtMidiOut Client"
	regexp.MustCompile(`(?i)through`),
}

func isVirtualThrough(name string) bool {
	for _, p := range throughPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// filterPorts drops duplicates and ALSA virtual-through / rtmidi client
// ports, which only echo our own traffic back.
func filterPorts(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range dedupe(names) {
		if !isVirtualThrough(n) {
			out = append(out, n)
		}
	}
	return out
}

func pickByName(names []string, target string) string {
	if target == "" {
		return ""
	}
	for _, n := range names {
		if n == target {
			return n
		}
	}
	return ""
}

func pickBySubstr(names []string, substr string) string {
	if substr == "" {
		return ""
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(substr)) {
			return n
		}
	}
	return ""
}

// pickPort resolves a port: exact name first, substring fallback second.
func pickPort(names []string, exact, substr string) string {
	if n := pickByName(names, exact); n != "" {
		return n
	}
	return pickBySubstr(names, substr)
}
