// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     qna
// Description: Question/answer records, in-memory store and SQLite archive
// Author:      Mike Stoffels with Claude
// Created:     2026-09-16
// License:     MIT
// ============================================================================

package qna

import (
	"time"

	"github.com/google/uuid"
)

// Status of an answer request
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnswered Status = "answered"
	StatusFailed   Status = "failed"
)

// Source of a question
type Source string

const (
	SourceAuto       Source = "auto"
	SourceCapture    Source = "capture"
	SourceFollowUp   Source = "followup"
	SourceAnalyze    Source = "analyze"
	SourceRegenerate Source = "regenerate"
)

// DocPush is the state of the transcript push for an item
type DocPush string

const (
	DocPushNone   DocPush = "none"
	DocPushQueued DocPush = "queued"
	DocPushOK     DocPush = "ok"
	DocPushError  DocPush = "error"
)

// Context is extra material attached when the question was captured
type Context struct {
	ImageDataURL  string `json:"imageDataUrl,omitempty" yaml:"imageDataUrl,omitempty"`
	ClipboardText string `json:"clipboardText,omitempty" yaml:"clipboardText,omitempty"`
}

// Timings records latencies in milliseconds; zero means not measured
type Timings struct {
	ExtractMs int64 `json:"extractMs,omitempty" yaml:"extractMs,omitempty"`
	AnswerMs  int64 `json:"answerMs,omitempty" yaml:"answerMs,omitempty"`
}

// QnA is one interview question with its generated answer
type QnA struct {
	ID                  string    `json:"id" yaml:"id"`
	Question            string    `json:"question" yaml:"question"`
	Answer              string    `json:"answer,omitempty" yaml:"answer,omitempty"`
	Status              Status    `json:"status" yaml:"status"`
	Language            string    `json:"language" yaml:"language"`
	Source              Source    `json:"source" yaml:"source"`
	Route               string    `json:"route" yaml:"route"`
	ProjectModeAtAnswer bool      `json:"projectModeAtAnswer" yaml:"projectModeAtAnswer"`
	QuestionNumber      int       `json:"questionNumber" yaml:"questionNumber"`
	Context             Context   `json:"context" yaml:"context,omitempty"`
	Timings             Timings   `json:"timings" yaml:"timings,omitempty"`
	DocPush             DocPush   `json:"docPush" yaml:"docPush"`
	CreatedAt           time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// New returns a pending item with defaults filled in
func New(question string, source Source) QnA {
	now := time.Now().UTC()
	return QnA{
		ID:        uuid.NewString(),
		Question:  question,
		Status:    StatusPending,
		Language:  "en-US",
		Source:    source,
		Route:     "default",
		DocPush:   DocPushNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Answered reports whether the item carries a non-blank answer
func (q QnA) Answered() bool {
	for _, r := range q.Answer {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// Pair is a previous question and its answer, used as answer history
type Pair struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Context  Context `json:"context"`
}
