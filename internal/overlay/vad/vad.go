// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     vad
// Description: Speech activity indicator over the transcriber audio stream
// Author:      Mike Stoffels with Claude
// Created:     2026-09-15
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// Config holds VAD configuration
type Config struct {
	// SampleRate must be 8000, 16000, 32000 or 48000
	SampleRate int

	// Mode is the WebRTC aggressiveness (0-3, higher filters more)
	Mode int

	// Hangover keeps the speaking flag up after the last voiced frame
	Hangover time.Duration
}

// DefaultConfig returns the configuration for 16 kHz transcriber audio
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Mode:       2,
		Hangover:   600 * time.Millisecond,
	}
}

// Detector classifies 16-bit PCM as voiced or not using WebRTC's VAD
type Detector struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
}

// NewDetector creates a WebRTC detector
func NewDetector(cfg Config) (*Detector, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &Detector{vad: v, sampleRate: cfg.SampleRate, mode: mode}, nil
}

// Process reports whether any 10 ms frame of little-endian PCM is voiced.
// A trailing partial frame is ignored.
func (d *Detector) Process(pcm []byte) (bool, error) {
	frame := d.sampleRate / 100 * 2

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i+frame <= len(pcm); i += frame {
		active, err := d.vad.Process(d.sampleRate, pcm[i:i+frame])
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Mode returns the aggressiveness mode
func (d *Detector) Mode() int {
	return d.mode
}

// Tracker turns per-chunk VAD decisions into a stable speaking flag
type Tracker struct {
	mu         sync.Mutex
	hangover   time.Duration
	speaking   bool
	lastVoiced time.Time
	started    time.Time
	now        func() time.Time
}

// NewTracker creates a tracker with the given hangover
func NewTracker(hangover time.Duration) *Tracker {
	return &Tracker{hangover: hangover, now: time.Now}
}

// Update records one decision and returns the speaking flag
func (t *Tracker) Update(voiced bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if voiced {
		if !t.speaking {
			t.started = now
		}
		t.speaking = true
		t.lastVoiced = now
		return true
	}
	if t.speaking && now.Sub(t.lastVoiced) >= t.hangover {
		t.speaking = false
	}
	return t.speaking
}

// Speaking returns the current flag
func (t *Tracker) Speaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaking
}

// SpeechDuration returns how long the current speech run has lasted
func (t *Tracker) SpeechDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.speaking {
		return 0
	}
	return t.lastVoiced.Sub(t.started)
}

// Reset clears the tracker
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.speaking = false
	t.lastVoiced = time.Time{}
	t.started = time.Time{}
	t.mu.Unlock()
}

// Gate combines a Detector and a Tracker
type Gate struct {
	detector *Detector
	tracker  *Tracker
}

// NewGate creates a gate for the given configuration
func NewGate(cfg Config) (*Gate, error) {
	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	return &Gate{detector: d, tracker: NewTracker(cfg.Hangover)}, nil
}

// Feed classifies a chunk and returns the speaking flag
func (g *Gate) Feed(pcm []byte) bool {
	voiced, err := g.detector.Process(pcm)
	if err != nil {
		voiced = false
	}
	return g.tracker.Update(voiced)
}

// Speaking returns the current flag
func (g *Gate) Speaking() bool {
	return g.tracker.Speaking()
}

// Reset clears the speaking state
func (g *Gate) Reset() {
	g.tracker.Reset()
}
