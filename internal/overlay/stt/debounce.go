package stt

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// DefaultDebounceInterval is how long a partial may stay unchanged before
// it is finalized locally
const DefaultDebounceInterval = 1500 * time.Millisecond

// Debouncer force-finalizes stale partials and reconciles the backend's
// later finals with text that was already committed locally
type Debouncer struct {
	interval time.Duration
	now      func() time.Time
}

// NewDebouncer creates a debouncer; a non-positive interval uses the default
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{interval: interval, now: time.Now}
}

// Interval returns the inactivity period
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Run consumes in until it is closed or ctx ends. The returned channel is
// closed afterwards. A pending partial is committed when in closes.
func (d *Debouncer) Run(ctx context.Context, in <-chan Segment) <-chan Segment {
	out := make(chan Segment, 16)
	go d.loop(ctx, in, out)
	return out
}

type debounceState struct {
	// partial is the latest full partial text of the open utterance
	partial  string
	language string
	// committed is the text of the open utterance already forced out
	committed string
}

func (d *Debouncer) loop(ctx context.Context, in <-chan Segment, out chan<- Segment) {
	defer close(out)

	timer := time.NewTimer(d.interval)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false
	disarm := func() {
		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		armed = false
	}

	var st debounceState
	emit := func(seg Segment) bool {
		select {
		case out <- seg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			disarm()
			return

		case seg, ok := <-in:
			if !ok {
				disarm()
				if f, ok := d.force(&st); ok {
					emit(f)
				}
				return
			}
			if strings.TrimSpace(seg.Text) == "" {
				continue
			}

			switch seg.Kind {
			case Partial:
				shown, ok := st.observePartial(seg)
				disarm()
				timer.Reset(d.interval)
				armed = true
				if ok && !emit(shown) {
					return
				}

			case Final:
				disarm()
				result, ok := st.reconcile(seg)
				if ok && !emit(result) {
					return
				}
			}

		case <-timer.C:
			armed = false
			if f, ok := d.force(&st); ok && !emit(f) {
				return
			}
		}
	}
}

// observePartial records a partial and returns the text to display: the
// part not yet committed when the partial extends committed text
func (st *debounceState) observePartial(seg Segment) (Segment, bool) {
	seg.Text = strings.TrimSpace(seg.Text)
	st.language = seg.Language

	if st.committed != "" {
		if rest, ok := remainder(st.committed, seg.Text); ok {
			st.partial = seg.Text
			if rest == "" {
				return Segment{}, false
			}
			seg.Text = rest
			return seg, true
		}
		// a different utterance started
		st.committed = ""
	}
	st.partial = seg.Text
	return seg, true
}

// force commits the uncommitted part of the pending partial
func (d *Debouncer) force(st *debounceState) (Segment, bool) {
	if st.partial == "" {
		return Segment{}, false
	}
	text := st.partial
	if st.committed != "" {
		if rest, ok := remainder(st.committed, st.partial); ok {
			text = rest
		}
	}
	st.committed = st.partial
	st.partial = ""
	if text == "" {
		return Segment{}, false
	}
	return Segment{Kind: Final, Text: text, Language: st.language, Forced: true, At: d.now()}, true
}

// reconcile filters a backend final against locally committed text
func (st *debounceState) reconcile(seg Segment) (Segment, bool) {
	seg.Text = strings.TrimSpace(seg.Text)
	committed := st.committed
	st.partial = ""
	st.committed = ""

	if committed == "" {
		return seg, true
	}
	if rest, ok := remainder(committed, seg.Text); ok {
		if rest == "" {
			return Segment{}, false
		}
		seg.Text = rest
		return seg, true
	}
	// the backend committed less than was forced
	if _, ok := remainder(seg.Text, committed); ok {
		return Segment{}, false
	}
	return seg, true
}

// remainder reports whether text starts with prefix when compared word by
// word after normalization, and returns the words of text after it
func remainder(prefix, text string) (string, bool) {
	pw := strings.Fields(prefix)
	tw := strings.Fields(text)
	if len(pw) > len(tw) {
		return "", false
	}
	for i := range pw {
		if normalizeWord(pw[i]) != normalizeWord(tw[i]) {
			return "", false
		}
	}
	return strings.Join(tw[len(pw):], " "), true
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}
