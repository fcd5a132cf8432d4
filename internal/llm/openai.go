package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default endpoints for OpenAI-compatible providers.
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAI-compatible chat completion wire types.

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function chatToolCallFunction `json:"function"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// OpenAI talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	provider string
	opts     Options
	client   *http.Client
}

// NewOpenAI creates a client. provider is used in errors and logs.
func NewOpenAI(provider string, opts Options) *OpenAI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		provider: provider,
		opts:     opts,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns provider/model.
func (c *OpenAI) Name() string {
	return c.provider + "/" + c.opts.Model
}

// Generate sends one chat completion request.
func (c *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	req = c.opts.withDefaults(req)

	body := chatCompletionRequest{
		Model:       c.opts.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msg, err := toChatMessage(m)
		if err != nil {
			return nil, err
		}
		body.Messages = append(body.Messages, msg)
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm %s request: %w", c.provider, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &APIError{Provider: c.provider, Status: res.StatusCode, Body: string(b)}
	}

	var cr chatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("llm %s decode: %w", c.provider, err)
	}
	if len(cr.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := cr.Choices[0]
	out := &Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("llm %s tool call %s arguments: %w", c.provider, tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	if strings.TrimSpace(out.Text) == "" && len(out.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	if cr.Usage != nil {
		out.Usage = *cr.Usage
	}
	return out, nil
}

func toChatMessage(m Message) (chatMessage, error) {
	msg := chatMessage{Role: m.Role, Content: m.Content}
	if m.ToolResult != nil {
		msg.Role = RoleTool
		msg.Content = m.ToolResult.Content
		msg.ToolCallID = m.ToolResult.CallID
		return msg, nil
	}
	for _, tc := range m.ToolCalls {
		args := []byte("{}")
		if len(tc.Args) > 0 {
			var err error
			if args, err = json.Marshal(tc.Args); err != nil {
				return chatMessage{}, fmt.Errorf("encode tool call %s: %w", tc.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: chatToolCallFunction{Name: tc.Name, Arguments: string(args)},
		})
	}
	return msg, nil
}
