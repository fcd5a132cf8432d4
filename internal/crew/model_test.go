package crew

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/JonMunkholm/datacrew/internal/llm"
)

func TestToolSpec_Schema(t *testing.T) {
	tests := []struct {
		name string
		fd   *genai.FunctionDeclaration
	}{
		{"json schema", &genai.FunctionDeclaration{
			Name: "echo",
			ParametersJsonSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"input": map[string]any{"type": "string"}},
			},
		}},
		{"genai schema", &genai.FunctionDeclaration{
			Name: "echo",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{"input": {Type: genai.TypeString}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := toolSpec(tt.fd)
			if err != nil {
				t.Fatalf("toolSpec: %v", err)
			}
			if spec.Parameters["type"] != "object" {
				t.Errorf("type = %v", spec.Parameters["type"])
			}
			props, _ := spec.Parameters["properties"].(map[string]any)
			input, _ := props["input"].(map[string]any)
			if input["type"] != "string" {
				t.Errorf("properties = %v", spec.Parameters["properties"])
			}
		})
	}

	spec, err := toolSpec(&genai.FunctionDeclaration{Name: "bare"})
	if err != nil || spec.Parameters["type"] != "object" {
		t.Errorf("bare declaration = %+v, %v", spec, err)
	}
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp map[string]any
		want string
	}{
		{"result", map[string]any{"result": "3 columns"}, "3 columns"},
		{"error", map[string]any{"error": "bad input"}, "Error: bad input"},
		{"other", map[string]any{"rows": 3}, `{"rows":3}`},
	}
	for _, tt := range tests {
		if got := responseText(tt.resp); got != tt.want {
			t.Errorf("%s: responseText = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestToMessages(t *testing.T) {
	call := &genai.Content{Role: roleModel, Parts: []*genai.Part{
		{Text: "checking", Thought: true},
		{Text: "Let me look."},
		{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "echo", Args: map[string]any{"input": "a"}}},
	}}
	result := &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{
		{FunctionResponse: &genai.FunctionResponse{ID: "c1", Name: "echo", Response: map[string]any{"result": "echo: a"}}},
	}}

	t.Run("native", func(t *testing.T) {
		msgs := append(toMessages(call, true), toMessages(result, true)...)
		if len(msgs) != 2 {
			t.Fatalf("messages = %+v", msgs)
		}
		if msgs[0].Role != llm.RoleAssistant || msgs[0].Content != "Let me look." || len(msgs[0].ToolCalls) != 1 {
			t.Errorf("assistant = %+v", msgs[0])
		}
		if msgs[1].Role != llm.RoleTool || msgs[1].ToolResult.CallID != "c1" || msgs[1].ToolResult.Content != "echo: a" {
			t.Errorf("tool = %+v", msgs[1])
		}
	})

	t.Run("flattened", func(t *testing.T) {
		msgs := append(toMessages(call, false), toMessages(result, false)...)
		if len(msgs) != 2 {
			t.Fatalf("messages = %+v", msgs)
		}
		if len(msgs[0].ToolCalls) != 0 || !strings.Contains(msgs[0].Content, `Called tool echo with {"input":"a"}`) {
			t.Errorf("assistant = %+v", msgs[0])
		}
		if msgs[1].Role != llm.RoleUser || msgs[1].Content != "Tool echo returned: echo: a" {
			t.Errorf("user = %+v", msgs[1])
		}
	})
}

func TestModelAdapter_Request(t *testing.T) {
	temp := float32(0.4)
	m := &scriptedModel{reply: func(int, llm.Request) (*llm.Response, error) { return answer("hi"), nil }}
	a := newModelAdapter(m)

	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("You are A.", genai.RoleUser),
			Temperature:       &temp,
			MaxOutputTokens:   256,
			StopSequences:     []string{"END"},
		},
	}
	var got *model.LLMResponse
	for res, err := range a.GenerateContent(context.Background(), req, false) {
		if err != nil {
			t.Fatalf("GenerateContent: %v", err)
		}
		got = res
	}

	sent := m.request(0)
	if sent.System != "You are A." || sent.MaxTokens != 256 || sent.Temperature != float64(temp) || sent.Stop[0] != "END" {
		t.Errorf("request = %+v", sent)
	}
	if len(sent.Messages) != 1 || sent.Messages[0].Role != llm.RoleUser {
		t.Errorf("empty contents should still send a user turn: %+v", sent.Messages)
	}
	if got == nil || contentText(got.Content) != "hi" || !got.TurnComplete {
		t.Fatalf("response = %+v", got)
	}
	if got.UsageMetadata.TotalTokenCount != 15 {
		t.Errorf("usage = %+v", got.UsageMetadata)
	}
}

func TestModelAdapter_UnknownToolTwice(t *testing.T) {
	m := &scriptedModel{reply: func(int, llm.Request) (*llm.Response, error) {
		return callTool("c", "nope", ""), nil
	}}
	a := newModelAdapter(m)

	for _, err := range a.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		if err == nil || !strings.Contains(err.Error(), `unknown tool "nope"`) {
			t.Errorf("err = %v, want unknown tool", err)
		}
	}
	if m.calls() != 2 {
		t.Errorf("calls = %d, want 2", m.calls())
	}
}
