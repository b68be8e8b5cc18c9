// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     stt
// Description: Streaming speech-to-text sessions and segment reconciliation
// Author:      Mike Stoffels with Claude
// Created:     2026-09-15
// License:     MIT
// ============================================================================

package stt

import (
	"context"
	"strings"
	"time"
)

// Kind distinguishes interim from committed recognition output
type Kind int

const (
	// Partial is interim text that may still change
	Partial Kind = iota
	// Final is committed text
	Final
)

// String returns the kind name
func (k Kind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

// Segment is one recognition result
type Segment struct {
	Kind     Kind
	Text     string
	Language string
	// Forced marks a final produced by the debouncer rather than the backend
	Forced bool
	At     time.Time
}

// Recognizer opens streaming recognition sessions
type Recognizer interface {
	Start(ctx context.Context, language string) (Session, error)
}

// Session is one open recognition stream. Events is closed after the
// stream ends.
type Session interface {
	Write(pcm []byte) error
	Events() <-chan Segment
	Close() error
}

// ShortLanguage maps a BCP-47 tag to a two-letter code: es* -> es,
// en* -> en, otherwise the first two letters, "en" when empty
func ShortLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case tag == "":
		return "en"
	case strings.HasPrefix(tag, "es"):
		return "es"
	case strings.HasPrefix(tag, "en"):
		return "en"
	case len(tag) >= 2:
		return tag[:2]
	default:
		return "en"
	}
}

// Toggle switches between the two supported interview languages
func Toggle(tag string) string {
	if ShortLanguage(tag) == "es" {
		return "en-US"
	}
	return "es-ES"
}
