package tui

import (
	"time"

	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/qna"
)

// eventMsg carries one pipeline event
type eventMsg pipeline.Event

// feedClosedMsg is sent when the event channel closes
type feedClosedMsg struct{}

// captureDoneMsg is sent when a manual capture finishes
type captureDoneMsg struct {
	item  qna.QnA
	found bool
	err   error
}

// actionDoneMsg is sent when start, stop or language change finish
type actionDoneMsg struct {
	action string
	err    error
}

// tickMsg refreshes the snapshot periodically
type tickMsg time.Time
