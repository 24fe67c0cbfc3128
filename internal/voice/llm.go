package voice

import (
	"context"
	"fmt"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText  StreamEventType = "text"
	EventTypeError StreamEventType = "error"
	EventTypeDone  StreamEventType = "done"
)

// StreamEvent represents a streaming response event
type StreamEvent struct {
	Type  StreamEventType `json:"type"`
	Text  string          `json:"text,omitempty"`
	Error error           `json:"error,omitempty"`
}

// Message is one turn of the conversation sent to the language model.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest represents a request to the language model provider.
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	System    string    `json:"system,omitempty"`
	Model     string    `json:"model,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// LLM is the language-model capability. Implementations stream text
// chunks and close the channel after a Done or Error event.
type LLM interface {
	// ID returns the provider identifier
	ID() string
	// Stream sends a request and returns streaming events
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// LLMOptions selects and configures a concrete language-model backend.
type LLMOptions struct {
	Provider      string // "openai", "anthropic", "ollama"
	Model         string
	OpenAIKey     string
	AnthropicKey  string
	OllamaBaseURL string
}

// NewLLM constructs the configured language-model provider. Unknown
// providers and missing credentials are construction failures.
func NewLLM(opts LLMOptions) (LLM, error) {
	switch opts.Provider {
	case "", "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAILLM(opts.OpenAIKey, opts.Model), nil
	case "anthropic":
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicLLM(opts.AnthropicKey, opts.Model), nil
	case "ollama":
		return NewOllamaLLM(opts.OllamaBaseURL, opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}
