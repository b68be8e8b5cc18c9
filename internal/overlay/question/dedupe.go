package question

import (
	"strings"
	"sync"
	"unicode"
)

// Deduper rejects questions that repeat one of the recently seen ones
type Deduper struct {
	mu        sync.Mutex
	threshold float64
	window    int
	recent    []string
}

// NewDeduper creates a deduper comparing against the last window
// questions; candidates with token Jaccard similarity >= threshold count
// as duplicates
func NewDeduper(threshold float64, window int) *Deduper {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	if window <= 0 {
		window = 20
	}
	return &Deduper{threshold: threshold, window: window}
}

// IsDuplicate reports whether q matches a remembered question
func (d *Deduper) IsDuplicate(q string) bool {
	n := Normalize(q)
	if n == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matchLocked(n)
}

func (d *Deduper) matchLocked(n string) bool {
	tokens := strings.Fields(n)
	for _, r := range d.recent {
		if r == n || Jaccard(tokens, strings.Fields(r)) >= d.threshold {
			return true
		}
	}
	return false
}

// Remember records q, evicting the oldest entry beyond the window
func (d *Deduper) Remember(q string) {
	n := Normalize(q)
	if n == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent = append(d.recent, n)
	if len(d.recent) > d.window {
		d.recent = d.recent[len(d.recent)-d.window:]
	}
}

// Admit checks and remembers in one step. It returns false for duplicates.
func (d *Deduper) Admit(q string) bool {
	n := Normalize(q)
	if n == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.matchLocked(n) {
		return false
	}
	d.recent = append(d.recent, n)
	if len(d.recent) > d.window {
		d.recent = d.recent[len(d.recent)-d.window:]
	}
	return true
}

// Seed replaces the memory, oldest first
func (d *Deduper) Seed(questions []string) {
	d.Reset()
	for _, q := range questions {
		d.Remember(q)
	}
}

// Reset forgets all questions
func (d *Deduper) Reset() {
	d.mu.Lock()
	d.recent = nil
	d.mu.Unlock()
}

// Normalize lower-cases q, strips punctuation (including ¿ and ¡) and
// collapses whitespace
func Normalize(q string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the token sets
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	var inter int
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}
