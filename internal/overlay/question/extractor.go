// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     question
// Description: Interview question extraction, deduplication and routing
// Author:      Mike Stoffels with Claude
// Created:     2026-09-16
// License:     MIT
// ============================================================================

package question

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/msto63/overlay/pkg/core/logging"
)

// Extraction sources
const (
	SourceFilter    = "filter"
	SourceRemote    = "remote"
	SourceHeuristic = "heuristic"
)

// Extraction is the outcome of analysing a transcript window
type Extraction struct {
	IsQuestion bool
	Question   string
	Source     string
}

// Extractor finds a single interview question in noisy transcript text
type Extractor interface {
	Extract(ctx context.Context, text string, keywords []string) (Extraction, error)
}

// IsCandidate is the cheap pre-check run before any analysis: at least
// three words and ten characters
func IsCandidate(text string) bool {
	text = strings.TrimSpace(text)
	return len(strings.Fields(text)) >= 3 && utf8.RuneCountInString(text) >= 10
}

// Chain uses the remote extractor when present and falls back to the
// heuristic when it fails
type Chain struct {
	Remote   Extractor
	Fallback Extractor
	logger   *logging.Logger
}

// NewChain creates a chain; remote may be nil
func NewChain(remote Extractor) *Chain {
	return &Chain{
		Remote:   remote,
		Fallback: Heuristic{},
		logger:   logging.New("question"),
	}
}

// Extract implements Extractor
func (c *Chain) Extract(ctx context.Context, text string, keywords []string) (Extraction, error) {
	if !IsCandidate(text) {
		return Extraction{Source: SourceFilter}, nil
	}
	if c.Remote != nil {
		ex, err := c.Remote.Extract(ctx, text, keywords)
		if err == nil {
			return ex, nil
		}
		if ctx.Err() != nil {
			return Extraction{}, ctx.Err()
		}
		c.logger.Warn("Remote extraction failed, using heuristic", "error", err)
	}
	return c.Fallback.Extract(ctx, text, keywords)
}

// Close releases resources held by the remote extractor
func (c *Chain) Close() {
	if closer, ok := c.Remote.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Mode describes which extractor the chain prefers
func (c *Chain) Mode() string {
	if c.Remote != nil {
		return SourceRemote
	}
	return SourceHeuristic
}
