package vad

import (
	"testing"
	"time"
)

func TestTracker_Hangover(t *testing.T) {
	clock := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(500 * time.Millisecond)
	tr.now = func() time.Time { return clock }

	if tr.Update(false) {
		t.Fatal("silence before speech should not be speaking")
	}
	if !tr.Update(true) {
		t.Fatal("voiced chunk should start speaking")
	}

	clock = clock.Add(200 * time.Millisecond)
	tr.Update(true)
	if tr.SpeechDuration() != 200*time.Millisecond {
		t.Errorf("SpeechDuration() = %v, want 200ms", tr.SpeechDuration())
	}

	clock = clock.Add(300 * time.Millisecond)
	if !tr.Update(false) {
		t.Error("within hangover should still be speaking")
	}

	clock = clock.Add(300 * time.Millisecond)
	if tr.Update(false) {
		t.Error("after hangover should stop speaking")
	}
	if tr.SpeechDuration() != 0 {
		t.Errorf("SpeechDuration() when silent = %v", tr.SpeechDuration())
	}

	tr.Update(true)
	tr.Reset()
	if tr.Speaking() {
		t.Error("Reset() should clear speaking")
	}
}

func TestNewDetector_InvalidRate(t *testing.T) {
	if _, err := NewDetector(Config{SampleRate: 44100}); err == nil {
		t.Error("NewDetector() should reject 44.1 kHz")
	}
}

func TestGate_Silence(t *testing.T) {
	g, err := NewGate(DefaultConfig())
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	if g.Feed(make([]byte, 3200)) {
		t.Error("digital silence should not be speech")
	}
	if g.detector.Mode() != 2 {
		t.Errorf("Mode() = %d, want 2", g.detector.Mode())
	}
}
