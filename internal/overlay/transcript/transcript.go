// Package transcript accumulates recognized speech for display and
// question extraction.
package transcript

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	// PlaceholderListening is shown while capture runs without text
	PlaceholderListening = "Listening..."
	// PlaceholderWaiting is shown while capture is stopped without text
	PlaceholderWaiting = "Waiting for audio..."
)

// Accumulator holds the committed transcript and the latest partial
type Accumulator struct {
	mu      sync.RWMutex
	lines   []string
	text    string
	partial string
}

// New creates an empty accumulator
func New() *Accumulator {
	return &Accumulator{}
}

// AppendFinal appends committed text and clears the partial.
// Blank text is ignored.
func (a *Accumulator) AppendFinal(text string) bool {
	text = strings.TrimSpace(text)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.partial = ""
	if text == "" {
		return false
	}
	a.lines = append(a.lines, text)
	if a.text == "" {
		a.text = text
	} else {
		a.text += "\n" + text
	}
	return true
}

// SetPartial replaces the in-progress text
func (a *Accumulator) SetPartial(text string) {
	a.mu.Lock()
	a.partial = strings.TrimSpace(text)
	a.mu.Unlock()
}

// Text returns the committed transcript
func (a *Accumulator) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.text
}

// Len returns the committed transcript length in runes
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return utf8.RuneCountInString(a.text)
}

// Partial returns the in-progress text
func (a *Accumulator) Partial() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.partial
}

// HasPartial reports whether recognition of an utterance is in progress
func (a *Accumulator) HasPartial() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.partial != ""
}

// Lines returns the committed segments in order
func (a *Accumulator) Lines() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.lines))
	copy(out, a.lines)
	return out
}

// Display renders transcript and partial for a live view
func (a *Accumulator) Display(running bool) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	switch {
	case a.text == "" && a.partial == "":
		if running {
			return PlaceholderListening
		}
		return PlaceholderWaiting
	case a.partial == "":
		return a.text
	case a.text == "":
		return a.partial
	default:
		return a.text + "\n" + a.partial
	}
}

// Window returns at most maxRunes of the transcript tail, starting on a
// word boundary. Line breaks become spaces.
func (a *Accumulator) Window(maxRunes int) string {
	a.mu.RLock()
	text := a.text
	a.mu.RUnlock()
	return Tail(strings.ReplaceAll(text, "\n", " "), maxRunes)
}

// Clear drops transcript and partial
func (a *Accumulator) Clear() {
	a.mu.Lock()
	a.lines = nil
	a.text = ""
	a.partial = ""
	a.mu.Unlock()
}

// Tail returns the last maxRunes runes of s, advanced to the next word
// start when the cut falls inside a word
func Tail(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	start := len(runes) - maxRunes
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}
