// Package llm is the boundary to hosted language models.
//
// The Model interface is a single Generate call: chat turns in, text and
// native tool calls out. Providers: OpenAI-compatible HTTP APIs (OpenAI,
// OpenRouter) and Anthropic through its Go SDK.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/datacrew/internal/config"
)

// Roles used in Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolSpec offers a function to the model. Parameters is a JSON Schema
// object describing the arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult answers the ToolCall with the same ID.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// Message is one chat turn. Assistant turns may carry ToolCalls; a RoleTool
// turn carries exactly one ToolResult.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Stop        []string
	Tools       []ToolSpec
}

// Usage reports token counts. Providers that do not return usage leave it zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the model's answer: text, tool calls or both.
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Model generates completions.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// ErrEmptyResponse is returned when a provider answers with neither text
// nor tool calls.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm %s error: status %d: %s", e.Provider, e.Status, strings.TrimSpace(e.Body))
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// Options are the provider-independent settings shared by all models.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// New builds the model selected by cfg.Provider.
func New(cfg config.LLMConfig) (Model, error) {
	opts := Options{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	if opts.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}

	var m Model
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		if opts.BaseURL == "" {
			opts.BaseURL = OpenAIBaseURL
		}
		m = NewOpenAI("openai", opts)
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = OpenRouterBaseURL
		}
		m = NewOpenAI("openrouter", opts)
	case "anthropic":
		m = NewAnthropic(opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	return WithRetry(m, opts.MaxRetries), nil
}

// withDefaults fills request fields left at zero from the model options.
func (o Options) withDefaults(req Request) Request {
	if req.MaxTokens <= 0 {
		req.MaxTokens = o.MaxTokens
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}
	if req.Temperature == 0 {
		req.Temperature = o.Temperature
	}
	return req
}
