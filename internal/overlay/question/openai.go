package question

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/msto63/overlay/pkg/core/errors"
)

const systemPrompt = "You extract one interview question from noisy transcript, keep original language, output strict JSON only."

// OpenAIConfig configures the remote classifier
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAIExtractor classifies transcript text with a chat completion model
type OpenAIExtractor struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewOpenAIExtractor creates a remote extractor
func NewOpenAIExtractor(cfg OpenAIConfig) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key not configured").WithCode(errors.CodeNotConfigured)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &OpenAIExtractor{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

type classification struct {
	IsQuestion bool   `json:"isQuestion"`
	Question   string `json:"question"`
}

// Extract implements Extractor
func (e *OpenAIExtractor) Extract(ctx context.Context, text string, keywords []string) (Extraction, error) {
	text = strings.TrimSpace(text)
	if !IsCandidate(text) {
		return Extraction{Source: SourceFilter}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The request omits a zero temperature, which the API reads as 1.
	temperature := e.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text, keywords)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Extraction{}, errors.Wrap(err, "question classification").
			WithCode(errors.CodeExternalService).WithOp("question.Extract")
	}
	if len(resp.Choices) == 0 {
		return Extraction{Source: SourceRemote}, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Extraction{Source: SourceRemote}, nil
	}

	var c classification
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return Extraction{}, fmt.Errorf("decode classification: %w", err)
	}
	q := strings.TrimSpace(c.Question)
	return Extraction{IsQuestion: c.IsQuestion && q != "", Question: q, Source: SourceRemote}, nil
}

// BuildPrompt renders the user message sent to the classifier
func BuildPrompt(text string, keywords []string) string {
	var b strings.Builder
	b.WriteString("You are an expert linguist specializing in interview question analysis.\n")
	b.WriteString("Extract a single clear question from a noisy transcript. Remove filler. Keep original language. Respond ONLY with JSON.\n")
	b.WriteString("\nText to analyze:\n")
	b.WriteString(text)
	b.WriteString("\n")
	if len(keywords) > 0 {
		b.WriteString("\nContextual Keywords:\n")
		for _, k := range keywords {
			b.WriteString("- ")
			b.WriteString(k)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nOutput JSON fields: isQuestion:boolean, question:string\n")
	return b.String()
}
