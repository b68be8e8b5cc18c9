// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     resample
// Description: Converts captured audio to 16 kHz mono PCM in 100 ms chunks
// Author:      Mike Stoffels with Claude
// Created:     2026-09-14
// License:     MIT
// ============================================================================

package resample

import (
	"bytes"
	"fmt"
	"sync"

	soxr "github.com/zaf/resample"

	"github.com/msto63/overlay/internal/overlay/audio"
)

// ChunkSize is 100 ms of 16 kHz mono 16-bit audio
const ChunkSize = 3200

// Adapter converts an arbitrary capture format to audio.Speech and cuts the
// result into ChunkSize pieces. It is safe for concurrent use.
type Adapter struct {
	mu        sync.Mutex
	in        audio.Format
	resampler *soxr.Resampler
	out       *bytes.Buffer
	pending   []byte
	partial   []byte
}

// New creates an adapter for the given input format
func New(in audio.Format) (*Adapter, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{
		in:  in,
		out: &bytes.Buffer{},
	}
	if err := a.openResampler(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) openResampler() error {
	if a.in.SampleRate == audio.Speech.SampleRate {
		a.resampler = nil
		return nil
	}
	r, err := soxr.New(a.out, float64(a.in.SampleRate), float64(audio.Speech.SampleRate), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return fmt.Errorf("create resampler: %w", err)
	}
	a.resampler = r
	return nil
}

// InputFormat returns the configured input format
func (a *Adapter) InputFormat() audio.Format {
	return a.in
}

// Write converts data and returns all complete chunks now available.
// Bytes not forming a whole input frame are carried over to the next call.
func (a *Adapter) Write(data []byte) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := a.in.FrameSize()
	if len(a.partial) > 0 {
		data = append(a.partial, data...)
		a.partial = nil
	}
	if rem := len(data) % frame; rem != 0 {
		a.partial = append([]byte(nil), data[len(data)-rem:]...)
		data = data[:len(data)-rem]
	}
	if len(data) == 0 {
		return nil, nil
	}

	pcm := ToMonoInt16(a.in, data)
	if err := a.push(audio.Int16ToBytes(pcm)); err != nil {
		return nil, err
	}
	return a.cut(false), nil
}

func (a *Adapter) push(pcm []byte) error {
	if a.resampler == nil {
		a.pending = append(a.pending, pcm...)
		return nil
	}
	if _, err := a.resampler.Write(pcm); err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	a.pending = append(a.pending, a.out.Bytes()...)
	a.out.Reset()
	return nil
}

func (a *Adapter) cut(all bool) [][]byte {
	var chunks [][]byte
	for len(a.pending) >= ChunkSize {
		chunk := make([]byte, ChunkSize)
		copy(chunk, a.pending[:ChunkSize])
		chunks = append(chunks, chunk)
		a.pending = a.pending[ChunkSize:]
	}
	if all && len(a.pending) > 0 {
		// keep whole samples only
		n := len(a.pending) - len(a.pending)%2
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, a.pending[:n])
			chunks = append(chunks, chunk)
		}
		a.pending = nil
	}
	if len(a.pending) == 0 {
		a.pending = nil
	}
	return chunks
}

// Flush drains the resampler and returns the remaining audio, including a
// final chunk shorter than ChunkSize. The adapter stays usable.
func (a *Adapter) Flush() ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.partial = nil
	if a.resampler != nil {
		if err := a.resampler.Close(); err != nil {
			return nil, fmt.Errorf("flush resampler: %w", err)
		}
		a.pending = append(a.pending, a.out.Bytes()...)
		a.out.Reset()
		if err := a.openResampler(); err != nil {
			return nil, err
		}
	}
	return a.cut(true), nil
}

// Close releases the resampler
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = nil
	a.partial = nil
	if a.resampler == nil {
		return nil
	}
	err := a.resampler.Close()
	a.resampler = nil
	return err
}

// ToMonoInt16 downmixes interleaved frames by averaging the channels and
// converts to 16-bit samples. Float input is clamped to [-1, 1].
func ToMonoInt16(in audio.Format, data []byte) []int16 {
	if in.Encoding == audio.EncodingInt16 && in.Channels == 1 {
		return audio.BytesToInt16(data)
	}
	samples := audio.Samples(in.Encoding, data)
	channels := in.Channels
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	scale := 1 / float32(channels)

	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c] * scale
		}
		out[i] = FloatToInt16(sum)
	}
	return out
}

// FloatToInt16 clamps v to [-1, 1] and scales by 32767
func FloatToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
