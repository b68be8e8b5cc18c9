// Package answer defines answer requests and the placeholder generator.
package answer

import (
	"context"

	"github.com/msto63/overlay/internal/overlay/qna"
)

// Input carries everything an answer generator may use
type Input struct {
	Question        string
	Language        string
	CV              string
	JobDescription  string
	PersonalProfile string
	ProjectInfo     string
	History         []qna.Pair
	IsFollowUp      bool
	ImageDataURL    string
	ClipboardText   string
	DocumentID      string
	QuestionNumber  int
	Route           string
}

// Result is a generated answer
type Result struct {
	Answer string
}

// Generator produces an answer for a question
type Generator interface {
	Generate(ctx context.Context, in Input) (Result, error)
}

// Stub returns a placeholder answer
type Stub struct{}

// Generate implements Generator
func (Stub) Generate(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	prefix := ""
	if in.IsFollowUp {
		prefix = "(follow-up) "
	}
	return Result{Answer: prefix + "Answer placeholder for: " + in.Question}, nil
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, in Input) (Result, error)

// Generate implements Generator
func (f GeneratorFunc) Generate(ctx context.Context, in Input) (Result, error) {
	return f(ctx, in)
}
