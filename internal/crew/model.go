package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/JonMunkholm/datacrew/internal/llm"
)

const roleModel = "model"

// modelAdapter lets an llm.Model drive ADK agents. Each GenerateContent
// call is one llm.Generate call (two when the model names a tool that was
// not offered and is asked again).
type modelAdapter struct {
	m llm.Model
}

var _ model.LLM = (*modelAdapter)(nil)

func newModelAdapter(m llm.Model) *modelAdapter {
	return &modelAdapter{m: m}
}

func (a *modelAdapter) Name() string {
	return a.m.Name()
}

// GenerateContent ignores stream: providers are called without streaming
// and the whole answer is yielded once.
func (a *modelAdapter) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		yield(a.generate(ctx, req))
	}
}

func (a *modelAdapter) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	lreq, err := toLLMRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := a.m.Generate(ctx, lreq)
	if err != nil {
		return nil, err
	}
	usage := res.Usage

	if unknown := unknownTools(res.ToolCalls, lreq.Tools); len(unknown) > 0 {
		lreq.Messages = append(lreq.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: res.Text},
			llm.Message{Role: llm.RoleUser, Content: unknownToolNote(unknown, lreq.Tools)},
		)
		if res, err = a.m.Generate(ctx, lreq); err != nil {
			return nil, err
		}
		usage.Add(res.Usage)

		calls := res.ToolCalls[:0:0]
		for _, tc := range res.ToolCalls {
			if len(unknownTools([]llm.ToolCall{tc}, lreq.Tools)) == 0 {
				calls = append(calls, tc)
			}
		}
		if len(calls) == 0 && strings.TrimSpace(res.Text) == "" {
			return nil, fmt.Errorf("model called unknown tool %q", res.ToolCalls[0].Name)
		}
		res.ToolCalls = calls
	}

	return toLLMResponse(res, usage), nil
}

func toLLMRequest(req *model.LLMRequest) (llm.Request, error) {
	var out llm.Request
	cfg := req.Config
	if cfg != nil {
		out.System = contentText(cfg.SystemInstruction)
		if cfg.Temperature != nil {
			out.Temperature = float64(*cfg.Temperature)
		}
		out.MaxTokens = int(cfg.MaxOutputTokens)
		out.Stop = cfg.StopSequences

		for _, t := range cfg.Tools {
			if t == nil {
				continue
			}
			for _, fd := range t.FunctionDeclarations {
				spec, err := toolSpec(fd)
				if err != nil {
					return llm.Request{}, err
				}
				out.Tools = append(out.Tools, spec)
			}
		}
	}

	native := len(out.Tools) > 0
	for _, c := range req.Contents {
		if c == nil {
			continue
		}
		out.Messages = append(out.Messages, toMessages(c, native)...)
	}
	if len(out.Messages) == 0 {
		out.Messages = []llm.Message{{Role: llm.RoleUser, Content: "Begin."}}
	}
	return out, nil
}

// toMessages converts one content. Without native tools, earlier calls and
// results are rendered as text so providers never see tool turns they were
// not offered tools for.
func toMessages(c *genai.Content, native bool) []llm.Message {
	var (
		text    []string
		calls   []llm.ToolCall
		results []llm.ToolResult
	)
	for _, p := range c.Parts {
		switch {
		case p == nil || p.Thought:
		case p.FunctionCall != nil:
			calls = append(calls, llm.ToolCall{ID: p.FunctionCall.ID, Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
		case p.FunctionResponse != nil:
			results = append(results, llm.ToolResult{
				CallID:  p.FunctionResponse.ID,
				Name:    p.FunctionResponse.Name,
				Content: responseText(p.FunctionResponse.Response),
			})
		case p.Text != "":
			text = append(text, p.Text)
		}
	}

	if !native {
		for _, tc := range calls {
			args, _ := json.Marshal(tc.Args)
			text = append(text, fmt.Sprintf("Called tool %s with %s", tc.Name, args))
		}
		for _, r := range results {
			text = append(text, fmt.Sprintf("Tool %s returned: %s", r.Name, r.Content))
		}
		calls, results = nil, nil
	}

	joined := strings.Join(text, "\n")
	if c.Role == roleModel {
		if joined == "" && len(calls) == 0 {
			return nil
		}
		return []llm.Message{{Role: llm.RoleAssistant, Content: joined, ToolCalls: calls}}
	}

	var msgs []llm.Message
	for i := range results {
		msgs = append(msgs, llm.Message{Role: llm.RoleTool, ToolResult: &results[i]})
	}
	if joined != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: joined})
	}
	return msgs
}

func toLLMResponse(res *llm.Response, usage llm.Usage) *model.LLMResponse {
	content := &genai.Content{Role: roleModel}
	if res.Text != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: res.Text})
	}
	for _, tc := range res.ToolCalls {
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Args},
		})
	}

	return &model.LLMResponse{
		Content: content,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(usage.PromptTokens),
			CandidatesTokenCount: int32(usage.CompletionTokens),
			TotalTokenCount:      int32(usage.TotalTokens),
		},
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
	}
}

func fromUsageMetadata(u *genai.GenerateContentResponseUsageMetadata) llm.Usage {
	if u == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, p := range c.Parts {
		if p != nil && !p.Thought && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// responseText reads a function response: the "result" string set by the
// crew's tools, an "error" string set when a tool fails, or the JSON of
// anything else.
func responseText(resp map[string]any) string {
	if s, ok := resp["result"].(string); ok {
		return s
	}
	if s, ok := resp["error"].(string); ok {
		return "Error: " + s
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprint(resp)
	}
	return string(b)
}

func toolSpec(fd *genai.FunctionDeclaration) (llm.ToolSpec, error) {
	spec := llm.ToolSpec{Name: fd.Name, Description: fd.Description}

	var schema any = fd.ParametersJsonSchema
	if schema == nil && fd.Parameters != nil {
		schema = fd.Parameters
	}
	if schema == nil {
		spec.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		return spec, nil
	}

	b, err := json.Marshal(schema)
	if err != nil {
		return llm.ToolSpec{}, fmt.Errorf("tool %s schema: %w", fd.Name, err)
	}
	if err := json.Unmarshal(b, &spec.Parameters); err != nil {
		return llm.ToolSpec{}, fmt.Errorf("tool %s schema: %w", fd.Name, err)
	}
	lowerTypes(spec.Parameters)
	return spec, nil
}

// lowerTypes rewrites genai's upper-case schema types ("OBJECT") to the
// JSON Schema spelling providers expect.
func lowerTypes(v any) {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			if s, ok := val.(string); ok && k == "type" {
				x[k] = strings.ToLower(s)
				continue
			}
			lowerTypes(val)
		}
	case []any:
		for _, val := range x {
			lowerTypes(val)
		}
	}
}

func unknownTools(calls []llm.ToolCall, offered []llm.ToolSpec) []string {
	var unknown []string
	for _, tc := range calls {
		found := false
		for _, t := range offered {
			if t.Name == tc.Name {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, tc.Name)
		}
	}
	return unknown
}

func unknownToolNote(unknown []string, offered []llm.ToolSpec) string {
	if len(offered) == 0 {
		return "No tools are available. Give your final answer as plain text."
	}
	names := make([]string, len(offered))
	for i, t := range offered {
		names[i] = t.Name
	}
	sort.Strings(names)
	return fmt.Sprintf("Tool %q does not exist. Use one of: %s.", unknown[0], strings.Join(names, ", "))
}
