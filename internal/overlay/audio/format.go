// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     audio
// Description: Audio sources, PCM format helpers, level metering
// Author:      Mike Stoffels with Claude
// Created:     2026-09-14
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Encoding identifies the sample encoding of a byte stream
type Encoding int

const (
	// EncodingFloat32 is 32-bit IEEE float, little-endian, range [-1, 1]
	EncodingFloat32 Encoding = iota
	// EncodingInt16 is signed 16-bit little-endian PCM
	EncodingInt16
)

// String returns the encoding name
func (e Encoding) String() string {
	switch e {
	case EncodingFloat32:
		return "f32le"
	case EncodingInt16:
		return "s16le"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the width of one sample of one channel
func (e Encoding) BytesPerSample() int {
	if e == EncodingInt16 {
		return 2
	}
	return 4
}

// Format describes interleaved PCM audio
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Speech is the format expected by the transcriber: 16 kHz mono 16-bit PCM
var Speech = Format{SampleRate: 16000, Channels: 1, Encoding: EncodingInt16}

// FrameSize returns the byte size of one interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.Encoding.BytesPerSample()
}

// BytesPerSecond returns the data rate of the format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Validate reports an error for formats that cannot be processed
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// String returns a compact description like "48000Hz/2ch/f32le"
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// Source produces raw interleaved audio in its native Format
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Close() error
	Output() <-chan []byte
	Format() Format
	Level() float64
}

// Float32ToBytes encodes samples as little-endian float32
func Float32ToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// BytesToFloat32 decodes little-endian float32 samples. Trailing bytes that
// do not form a full sample are ignored.
func BytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian 16-bit PCM
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian 16-bit PCM
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// Samples decodes data in the given encoding to float32 in [-1, 1]
func Samples(enc Encoding, data []byte) []float32 {
	if enc == EncodingFloat32 {
		return BytesToFloat32(data)
	}
	pcm := BytesToInt16(data)
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}
