package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Messages API through the official SDK.
type Anthropic struct {
	opts   Options
	client anthropic.Client
}

// NewAnthropic creates a client. SDK retries are disabled; WithRetry
// handles retries uniformly for every provider.
func NewAnthropic(opts Options) *Anthropic {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &Anthropic{
		opts:   opts,
		client: anthropic.NewClient(reqOpts...),
	}
}

// Name returns anthropic/model.
func (a *Anthropic) Name() string {
	return "anthropic/" + a.opts.Model
}

// Generate sends one Messages request. Consecutive turns with the same
// role are merged, so parallel tool results share one user message.
func (a *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	req = a.opts.withDefaults(req)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.opts.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropicTool(t))
	}

	for _, m := range req.Messages {
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		blocks := anthropicBlocks(m)
		if len(blocks) == 0 {
			continue
		}
		if n := len(params.Messages); n > 0 && params.Messages[n-1].Role == role {
			params.Messages[n-1].Content = append(params.Messages[n-1].Content, blocks...)
			continue
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: "anthropic", Status: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return nil, err
	}

	out := &Response{FinishReason: string(msg.StopReason)}
	var sb strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			sb.WriteString(block.Text)
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("llm anthropic tool call %s input: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Args: args})
		}
	}
	out.Text = sb.String()
	if strings.TrimSpace(out.Text) == "" && len(out.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}

	in, gen := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	out.Usage = Usage{
		PromptTokens:     in,
		CompletionTokens: gen,
		TotalTokens:      in + gen,
	}
	return out, nil
}

func anthropicBlocks(m Message) []anthropic.ContentBlockParamUnion {
	if m.ToolResult != nil {
		return []anthropic.ContentBlockParamUnion{
			anthropic.NewToolResultBlock(m.ToolResult.CallID, m.ToolResult.Content, false),
		}
	}

	var blocks []anthropic.ContentBlockParamUnion
	if strings.TrimSpace(m.Content) != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		args := tc.Args
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	return blocks
}

func anthropicTool(t ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]}
	switch req := t.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}

	tool := &anthropic.ToolParam{Name: t.Name, InputSchema: schema}
	if t.Description != "" {
		tool.Description = anthropic.String(t.Description)
	}
	return anthropic.ToolUnionParam{OfTool: tool}
}
