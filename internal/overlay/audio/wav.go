package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes a 16-bit mono PCM stream to a WAV file
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	format  *goaudio.Format
	path    string
	samples int
}

// RecordingPath returns <dir>/audio-<timestamp>.wav
func RecordingPath(dir string, at time.Time) string {
	return filepath.Join(dir, "audio-"+at.Format("20060102-150405")+".wav")
}

// NewRecorder creates the file at path (and its directory)
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, 16, 1, 1),
		format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		path:   path,
	}, nil
}

// Write appends little-endian 16-bit PCM
func (r *Recorder) Write(pcm []byte) error {
	samples := BytesToInt16(pcm)
	if len(samples) == 0 {
		return nil
	}
	buf := &goaudio.IntBuffer{
		Format:         r.format,
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return fmt.Errorf("recorder closed")
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	r.samples += len(samples)
	return nil
}

// Close finalizes the WAV header and closes the file
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	err := r.enc.Close()
	r.enc = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Path returns the file path
func (r *Recorder) Path() string { return r.path }

// Duration returns the recorded length
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.samples) * time.Second / time.Duration(r.format.SampleRate)
}
