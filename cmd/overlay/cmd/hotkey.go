package cmd

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/msto63/overlay/pkg/core/logging"
	"golang.design/x/hotkey"
)

// watchCaptureHotkey runs onPress for every Ctrl+Shift+Q until ctx ends.
// Presses arriving while onPress is still running are dropped.
func watchCaptureHotkey(ctx context.Context, onPress func()) error {
	logger := logging.New("hotkey")

	// On macOS the hotkey needs the main thread loop, which the TUI owns
	if runtime.GOOS == "darwin" {
		logger.Info("Global hotkey not available on macOS, use the live view key 'c'")
		return nil
	}

	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyQ)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}
	logger.Info("Capture hotkey registered", "keys", "Ctrl+Shift+Q")

	var busy atomic.Bool
	go func() {
		<-ctx.Done()
		hk.Unregister()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-hk.Keydown():
			if !ok {
				return nil
			}
			if !busy.CompareAndSwap(false, true) {
				logger.Debug("Capture already running, hotkey ignored")
				continue
			}
			go func() {
				defer busy.Store(false)
				onPress()
			}()
		}
	}
}
