package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/msto63/overlay/pkg/core/logging"
)

const (
	// DefaultMicSampleRate is the rate requested from the input device
	DefaultMicSampleRate = 16000

	// DefaultFramesPerBuffer is the PortAudio buffer size
	DefaultFramesPerBuffer = 512
)

// MicrophoneConfig holds configuration for microphone capture
type MicrophoneConfig struct {
	SampleRate int
	BufferSize int
	DeviceName string // empty or "default" selects the default input
}

// DefaultMicrophoneConfig returns default microphone configuration
func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{
		SampleRate: DefaultMicSampleRate,
		BufferSize: DefaultFramesPerBuffer,
	}
}

// Microphone captures mono float32 audio from an input device via PortAudio
type Microphone struct {
	mu          sync.RWMutex
	cfg         MicrophoneConfig
	stream      *portaudio.Stream
	running     bool
	initialized bool
	closed      bool
	output      chan []byte
	meter       LevelMeter
	logger      *logging.Logger
}

// NewMicrophone initializes PortAudio and creates a microphone source
func NewMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultMicSampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Microphone{
		cfg:         cfg,
		output:      make(chan []byte, 100),
		initialized: true,
		logger:      logging.New("audio.mic"),
	}, nil
}

// Start opens the input stream and begins capture
func (m *Microphone) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("microphone closed")
	}
	if m.running {
		return fmt.Errorf("capture already running")
	}

	buffer := make([]float32, m.cfg.BufferSize)
	stream, err := m.openStream(buffer)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	m.stream = stream
	m.running = true
	m.logger.Info("Microphone capture started", "device", m.deviceLabel(), "rate", m.cfg.SampleRate)

	go m.captureLoop(ctx, stream, buffer)
	return nil
}

func (m *Microphone) openStream(buffer []float32) (*portaudio.Stream, error) {
	if m.cfg.DeviceName != "" && m.cfg.DeviceName != "default" {
		device, err := findInputDevice(m.cfg.DeviceName)
		if err == nil {
			return portaudio.OpenStream(portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: 1,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      float64(m.cfg.SampleRate),
				FramesPerBuffer: m.cfg.BufferSize,
			}, buffer)
		}
		m.logger.Warn("Input device not found, using default", "device", m.cfg.DeviceName)
	}
	return portaudio.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), m.cfg.BufferSize, buffer)
}

func (m *Microphone) deviceLabel() string {
	if m.cfg.DeviceName == "" {
		return "default"
	}
	return m.cfg.DeviceName
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func (m *Microphone) captureLoop(ctx context.Context, stream *portaudio.Stream, buffer []float32) {
	for {
		select {
		case <-ctx.Done():
			_ = m.Stop()
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if !m.IsRunning() {
				return
			}
			continue
		}

		m.meter.Observe(buffer)
		data := Float32ToBytes(buffer)

		m.mu.RLock()
		if !m.running {
			m.mu.RUnlock()
			return
		}
		select {
		case m.output <- data:
		default:
			// consumer behind, drop this buffer
		}
		m.mu.RUnlock()
	}
}

// Stop stops capture. The source can be started again.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.meter.Reset()

	if m.stream != nil {
		_ = m.stream.Stop()
		err := m.stream.Close()
		m.stream = nil
		if err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
	}
	m.logger.Info("Microphone capture stopped")
	return nil
}

// Close stops capture and releases PortAudio
func (m *Microphone) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.initialized {
		m.initialized = false
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
	}
	close(m.output)
	return nil
}

// Output returns the channel of float32 little-endian buffers
func (m *Microphone) Output() <-chan []byte { return m.output }

// Format returns the captured format
func (m *Microphone) Format() Format {
	return Format{SampleRate: m.cfg.SampleRate, Channels: 1, Encoding: EncodingFloat32}
}

// Level returns the smoothed input level, 0 when stopped
func (m *Microphone) Level() float64 {
	if !m.IsRunning() {
		return 0
	}
	return m.meter.Level()
}

// IsRunning returns whether capture is currently running
func (m *Microphone) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// DeviceInfo holds information about an audio input device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the available input devices
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var inputs []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}
	return inputs, nil
}
