// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     version
// Description: Build version information
// Author:      Mike Stoffels with Claude
// Created:     2026-09-14
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version of the overlay. Overridden at build time via
// -ldflags "-X github.com/msto63/overlay/pkg/core/version.Version=..."
var Version = "0.3.0"

// Commit is the VCS revision the binary was built from
var Commit = "dev"

// Name is the product name reported by the CLI and the health endpoint
const Name = "overlay"

// String returns a one-line version banner
func String() string {
	return fmt.Sprintf("%s %s (%s, %s/%s, %s)",
		Name, Version, Commit, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
