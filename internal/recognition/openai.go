// OpenAI-backed recognizer and knowledge base.
//
// The chat completion is asked for a strict JSON envelope which is parsed into
// the raw recognition result; the orchestrator never sees the prompt text.
package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Opts holds configuration options for the OpenAI recognizer.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the OpenAI recognizer.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model used for recognition calls.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

const recognizerSystemPrompt = `You are an intent and entity recognizer for a retail assistant bot.
Given the user's message, respond with ONLY a JSON object of the shape
{"intents": {"<intent>": <confidence 0..1>}, "entities": {"<entity>": ["<value>", ...]}}.
Known intents: menu, farewell, purchaseTV, none.
Requests to go back or return to the previous topic are an "action" entity value, not an intent.
Known entities: about, help, action, brand, price, feedback.
Do not emit any text outside the JSON object.`

const knowledgeBaseSystemPrompt = `You answer frequently asked questions about a retail assistant bot.
Given the user's message, respond with ONLY a JSON array of the shape
[{"answer": "<text>", "score": <confidence 0..1>}].
Respond with [] when the message is not a question you can answer.`

// OpenAIRecognizer implements Recognizer over the OpenAI chat completion API.
type OpenAIRecognizer struct {
	client openai.Client
	model  string
}

// NewOpenAIRecognizer creates a recognizer, falling back to the
// OPENAI_API_KEY environment variable when no key option is given.
func NewOpenAIRecognizer(opts ...Option) (*OpenAIRecognizer, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("OpenAIRecognizer created", "model", cfg.Model)
	return &OpenAIRecognizer{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Recognize asks the model for the intent/entity envelope and parses it.
func (r *OpenAIRecognizer) Recognize(ctx context.Context, text string) (RawResult, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(recognizerSystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		slog.Error("OpenAIRecognizer completion failed", "error", err)
		return RawResult{}, fmt.Errorf("recognition completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return RawResult{}, fmt.Errorf("recognition completion returned no choices")
	}
	var raw RawResult
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		slog.Error("OpenAIRecognizer envelope parse failed", "error", err, "content_length", len(content))
		return RawResult{}, fmt.Errorf("failed to parse recognition envelope: %w", err)
	}
	slog.Debug("OpenAIRecognizer recognized input", "intents", len(raw.Intents), "entities", len(raw.Entities))
	return raw, nil
}

// OpenAIKnowledgeBase implements KnowledgeBase over the OpenAI chat completion API.
type OpenAIKnowledgeBase struct {
	client openai.Client
	model  string
}

// NewOpenAIKnowledgeBase creates a knowledge base with the same option set as
// the recognizer.
func NewOpenAIKnowledgeBase(opts ...Option) (*OpenAIKnowledgeBase, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	return &OpenAIKnowledgeBase{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// Lookup asks the model for FAQ answers; an empty array means no answer.
func (kb *OpenAIKnowledgeBase) Lookup(ctx context.Context, text string) ([]Answer, error) {
	resp, err := kb.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: kb.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(knowledgeBaseSystemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		slog.Error("OpenAIKnowledgeBase completion failed", "error", err)
		return nil, fmt.Errorf("knowledge base completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("knowledge base completion returned no choices")
	}
	var answers []Answer
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &answers); err != nil {
		slog.Error("OpenAIKnowledgeBase answer parse failed", "error", err, "content_length", len(content))
		return nil, fmt.Errorf("failed to parse knowledge base answers: %w", err)
	}
	slog.Debug("OpenAIKnowledgeBase lookup", "hits", len(answers))
	return answers, nil
}

// extractJSON trims code fences and surrounding prose the model sometimes adds.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}
