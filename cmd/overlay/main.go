// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     main
// Description: Entry point of the overlay CLI
// Author:      Mike Stoffels with Claude
// Created:     2026-09-19
// License:     MIT
// ============================================================================

package main

import (
	"os"

	"github.com/msto63/overlay/cmd/overlay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
