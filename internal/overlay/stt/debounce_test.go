package stt

import (
	"context"
	"testing"
	"time"
)

const testInterval = 40 * time.Millisecond

func next(t *testing.T, ch <-chan Segment) Segment {
	t.Helper()
	select {
	case seg, ok := <-ch:
		if !ok {
			t.Fatal("output closed unexpectedly")
		}
		return seg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for segment")
	}
	return Segment{}
}

func expectNone(t *testing.T, ch <-chan Segment, wait time.Duration) {
	t.Helper()
	select {
	case seg, ok := <-ch:
		if ok {
			t.Fatalf("unexpected segment %+v", seg)
		}
	case <-time.After(wait):
	}
}

func TestDebouncer_ForcesStalePartial(t *testing.T) {
	in := make(chan Segment)
	out := NewDebouncer(testInterval).Run(context.Background(), in)

	in <- Segment{Kind: Partial, Text: "tell me about", Language: "en-US"}
	if seg := next(t, out); seg.Kind != Partial || seg.Text != "tell me about" {
		t.Fatalf("partial passthrough = %+v", seg)
	}

	seg := next(t, out)
	if seg.Kind != Final || !seg.Forced || seg.Text != "tell me about" || seg.Language != "en-US" {
		t.Fatalf("forced final = %+v", seg)
	}
	close(in)
}

func TestDebouncer_Reconciliation(t *testing.T) {
	tests := []struct {
		name  string
		final string
		want  string // empty means dropped
	}{
		{"equal final dropped", "Hello world.", ""},
		{"extension emits remainder", "hello world, how are you?", "how are you?"},
		{"shorter final dropped", "hello", ""},
		{"unrelated passes", "goodbye now", "goodbye now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make(chan Segment)
			out := NewDebouncer(testInterval).Run(context.Background(), in)

			in <- Segment{Kind: Partial, Text: "hello world"}
			next(t, out)
			if seg := next(t, out); !seg.Forced {
				t.Fatalf("expected forced final, got %+v", seg)
			}

			in <- Segment{Kind: Final, Text: tt.final}
			if tt.want == "" {
				expectNone(t, out, 2*testInterval)
			} else {
				seg := next(t, out)
				if seg.Kind != Final || seg.Forced || seg.Text != tt.want {
					t.Errorf("reconciled = %+v, want %q", seg, tt.want)
				}
			}
			close(in)
		})
	}
}

func TestDebouncer_FinalCancelsTimer(t *testing.T) {
	in := make(chan Segment)
	out := NewDebouncer(testInterval).Run(context.Background(), in)

	in <- Segment{Kind: Partial, Text: "what is your"}
	next(t, out)
	in <- Segment{Kind: Final, Text: "What is your background?"}

	seg := next(t, out)
	if seg.Forced || seg.Text != "What is your background?" {
		t.Fatalf("final = %+v", seg)
	}
	expectNone(t, out, 3*testInterval)
	close(in)
}

func TestDebouncer_PartialAfterForceShowsRemainder(t *testing.T) {
	in := make(chan Segment)
	out := NewDebouncer(testInterval).Run(context.Background(), in)

	in <- Segment{Kind: Partial, Text: "so tell me"}
	next(t, out)
	next(t, out) // forced

	in <- Segment{Kind: Partial, Text: "so tell me about kubernetes"}
	if seg := next(t, out); seg.Text != "about kubernetes" {
		t.Fatalf("partial remainder = %q", seg.Text)
	}
	seg := next(t, out)
	if !seg.Forced || seg.Text != "about kubernetes" {
		t.Fatalf("second forced final = %+v", seg)
	}
	close(in)
}

func TestDebouncer_IgnoresBlankAndFlushesOnClose(t *testing.T) {
	in := make(chan Segment, 3)
	out := NewDebouncer(time.Hour).Run(context.Background(), in)

	in <- Segment{Kind: Final, Text: "   "}
	in <- Segment{Kind: Partial, Text: "pending words"}
	close(in)

	if seg := next(t, out); seg.Kind != Partial {
		t.Fatalf("first = %+v", seg)
	}
	seg := next(t, out)
	if !seg.Forced || seg.Text != "pending words" {
		t.Fatalf("flush = %+v", seg)
	}
	if _, ok := <-out; ok {
		t.Error("output should be closed")
	}
}

func TestDebouncer_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := NewDebouncer(testInterval).Run(ctx, make(chan Segment))
	cancel()
	select {
	case _, ok := <-out:
		if ok {
			t.Error("unexpected segment")
		}
	case <-time.After(time.Second):
		t.Fatal("debouncer did not stop on cancel")
	}
}

func TestRemainder(t *testing.T) {
	tests := []struct {
		prefix, text, want string
		ok                 bool
	}{
		{"hello world", "Hello, world! again", "again", true},
		{"hello world", "hello", "", false},
		{"¿qué tal", "qué tal estás?", "estás?", true},
		{"a b", "a c", "", false},
	}
	for _, tt := range tests {
		got, ok := remainder(tt.prefix, tt.text)
		if ok != tt.ok || got != tt.want {
			t.Errorf("remainder(%q, %q) = %q, %v; want %q, %v", tt.prefix, tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestShortLanguage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"es-ES", "es"},
		{"es-MX", "es"},
		{"en-GB", "en"},
		{"EN-us", "en"},
		{"de-DE", "de"},
		{"", "en"},
		{"x", "en"},
	}
	for _, tt := range tests {
		if got := ShortLanguage(tt.in); got != tt.want {
			t.Errorf("ShortLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if Toggle("en-US") != "es-ES" || Toggle("es-ES") != "en-US" {
		t.Error("Toggle() should switch between en-US and es-ES")
	}
}
