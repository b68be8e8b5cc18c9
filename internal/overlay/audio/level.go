package audio

import (
	"math"
	"sync"
)

// LevelMeter tracks a smoothed peak level in [0, 1]
type LevelMeter struct {
	mu    sync.RWMutex
	level float64
}

// Observe feeds one buffer of samples into the meter and returns the new level
func (m *LevelMeter) Observe(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	if peak > 1 {
		peak = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = m.level*0.7 + peak*0.3
	return m.level
}

// ObserveBytes decodes data in the given encoding and observes it
func (m *LevelMeter) ObserveBytes(enc Encoding, data []byte) float64 {
	return m.Observe(Samples(enc, data))
}

// Level returns the current smoothed level
func (m *LevelMeter) Level() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Reset drops the meter to zero
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}
