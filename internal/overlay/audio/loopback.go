package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/msto63/overlay/pkg/core/logging"
)

// LoopbackConfig holds configuration for system loopback capture
type LoopbackConfig struct {
	SampleRate int
	Channels   int
}

// DefaultLoopbackConfig returns the common render mix format
func DefaultLoopbackConfig() LoopbackConfig {
	return LoopbackConfig{SampleRate: 48000, Channels: 2}
}

// Loopback captures what the system is playing through miniaudio's
// loopback device. Only backends with loopback support (WASAPI) can open it.
type Loopback struct {
	mu      sync.RWMutex
	cfg     LoopbackConfig
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	format  Format
	running bool
	closed  bool
	output  chan []byte
	meter   LevelMeter
	logger  *logging.Logger
}

// NewLoopback initializes a miniaudio context for loopback capture
func NewLoopback(cfg LoopbackConfig) (*Loopback, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}

	logger := logging.New("audio.loopback")
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
	}

	return &Loopback{
		cfg:    cfg,
		mctx:   mctx,
		format: Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels, Encoding: EncodingFloat32},
		output: make(chan []byte, 100),
		logger: logger,
	}, nil
}

// Start opens the loopback device and begins capture
func (l *Loopback) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("loopback closed")
	}
	if l.running {
		return fmt.Errorf("capture already running")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(l.cfg.Channels)
	deviceConfig.SampleRate = uint32(l.cfg.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			l.deliver(input)
		},
	}

	device, err := malgo.InitDevice(l.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to open loopback device: %w", err)
	}
	if rate := int(device.SampleRate()); rate > 0 {
		l.format.SampleRate = rate
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start loopback device: %w", err)
	}

	l.device = device
	l.running = true
	l.logger.Info("Loopback capture started", "format", l.format.String())

	go func() {
		<-ctx.Done()
		_ = l.Stop()
	}()
	return nil
}

// deliver runs on the miniaudio thread; it must not block
func (l *Loopback) deliver(input []byte) {
	if len(input) == 0 {
		return
	}
	data := make([]byte, len(input))
	copy(data, input)
	l.meter.ObserveBytes(EncodingFloat32, data)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.running {
		return
	}
	select {
	case l.output <- data:
	default:
	}
}

// Stop stops capture. The source can be started again.
func (l *Loopback) Stop() error {
	l.mu.Lock()
	device := l.device
	wasRunning := l.running
	l.running = false
	l.device = nil
	l.mu.Unlock()

	if !wasRunning || device == nil {
		return nil
	}
	// the data callback takes the read lock, so stop outside of it
	err := device.Stop()
	device.Uninit()
	l.meter.Reset()
	l.logger.Info("Loopback capture stopped")
	if err != nil {
		return fmt.Errorf("failed to stop loopback device: %w", err)
	}
	return nil
}

// Close stops capture and frees the miniaudio context
func (l *Loopback) Close() error {
	if err := l.Stop(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.mctx != nil {
		_ = l.mctx.Uninit()
		l.mctx.Free()
		l.mctx = nil
	}
	close(l.output)
	return nil
}

// Output returns the channel of interleaved float32 buffers
func (l *Loopback) Output() <-chan []byte { return l.output }

// Format returns the device format negotiated at Start
func (l *Loopback) Format() Format {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.format
}

// Level returns the smoothed output level, 0 when stopped
func (l *Loopback) Level() float64 {
	l.mu.RLock()
	running := l.running
	l.mu.RUnlock()
	if !running {
		return 0
	}
	return l.meter.Level()
}
