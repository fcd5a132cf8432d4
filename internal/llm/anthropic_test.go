package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type anthropicRequest struct {
	Model         string   `json:"model"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stop_sequences"`
	System        []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string           `json:"role"`
		Content []map[string]any `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		InputSchema map[string]any `json:"input_schema"`
	} `json:"tools"`
}

func newAnthropicServer(t *testing.T, status int, body string, got *anthropicRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "sk-ant-test" {
			t.Errorf("X-Api-Key = %q", key)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropic_Generate(t *testing.T) {
	var got anthropicRequest
	srv := newAnthropicServer(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Let me clean it."},
			{"type": "tool_use", "id": "toolu_2", "name": "clean_data", "input": {"input": "dedupe"}}
		],
		"usage": {"input_tokens": 7, "output_tokens": 3}
	}`, &got)

	m := NewAnthropic(Options{Model: "claude-test", APIKey: "sk-ant-test", BaseURL: srv.URL, MaxTokens: 300, Temperature: 0.3})
	res, err := m.Generate(context.Background(), Request{
		System: "You are a Reporter.",
		Stop:   []string{"\nObservation:"},
		Tools: []ToolSpec{{
			Name:        "profile_data",
			Description: "Profiles the dataset.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"input": map[string]any{"type": "string"}},
				"required":   []any{"input"},
			},
		}},
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "toolu_1", Name: "profile_data", Args: map[string]any{"input": "all"}}}},
			{Role: RoleTool, ToolResult: &ToolResult{CallID: "toolu_1", Name: "profile_data", Content: "3 columns"}},
			{Role: RoleUser, Content: "go on"},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	t.Run("request", func(t *testing.T) {
		if got.Model != "claude-test" || got.MaxTokens != 300 || got.Temperature != 0.3 {
			t.Errorf("request = %+v", got)
		}
		if len(got.System) != 1 || got.System[0].Text != "You are a Reporter." {
			t.Errorf("system = %+v", got.System)
		}
		if len(got.StopSequences) != 1 || got.StopSequences[0] != "\nObservation:" {
			t.Errorf("stop_sequences = %q", got.StopSequences)
		}
		if len(got.Tools) != 1 || got.Tools[0].Name != "profile_data" || got.Tools[0].Description != "Profiles the dataset." {
			t.Fatalf("tools = %+v", got.Tools)
		}
		if got.Tools[0].InputSchema["type"] != "object" || got.Tools[0].InputSchema["properties"] == nil {
			t.Errorf("input_schema = %v", got.Tools[0].InputSchema)
		}

		// The tool result and the following user text share one user turn.
		wantRoles := []string{"user", "assistant", "user"}
		if len(got.Messages) != len(wantRoles) {
			t.Fatalf("messages = %+v", got.Messages)
		}
		for i, role := range wantRoles {
			if got.Messages[i].Role != role {
				t.Errorf("messages[%d].role = %q, want %q", i, got.Messages[i].Role, role)
			}
		}
		use := got.Messages[1].Content
		if len(use) != 1 || use[0]["type"] != "tool_use" || use[0]["id"] != "toolu_1" || use[0]["name"] != "profile_data" {
			t.Errorf("assistant content = %v", use)
		}
		last := got.Messages[2].Content
		if len(last) != 2 || last[0]["type"] != "tool_result" || last[0]["tool_use_id"] != "toolu_1" || last[1]["text"] != "go on" {
			t.Errorf("user content = %v", last)
		}
	})

	t.Run("response", func(t *testing.T) {
		if res.Text != "Let me clean it." || res.FinishReason != "tool_use" {
			t.Errorf("response = %+v", res)
		}
		if len(res.ToolCalls) != 1 {
			t.Fatalf("tool calls = %+v", res.ToolCalls)
		}
		tc := res.ToolCalls[0]
		if tc.ID != "toolu_2" || tc.Name != "clean_data" || tc.Args["input"] != "dedupe" {
			t.Errorf("tool call = %+v", tc)
		}
		if res.Usage != (Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}) {
			t.Errorf("usage = %+v", res.Usage)
		}
	})
}

func TestAnthropic_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantAPI   bool
		retryable bool
		wantEmpty bool
	}{
		{"rate limited", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, true, true, false},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, true, true, false},
		{"unauthorized", 401, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, true, false, false},
		{"no content", 200, `{"id":"m","type":"message","role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`, false, false, true},
		{"blank text", 200, `{"id":"m","type":"message","role":"assistant","content":[{"type":"text","text":"  "}],"usage":{"input_tokens":1,"output_tokens":1}}`, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnthropicServer(t, tt.status, tt.body, nil)

			m := NewAnthropic(Options{Model: "claude-test", APIKey: "sk-ant-test", BaseURL: srv.URL})
			_, err := m.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			if err == nil {
				t.Fatal("expected error")
			}

			var apiErr *APIError
			if errors.As(err, &apiErr) != tt.wantAPI {
				t.Fatalf("APIError = %v, want %v (err %v)", apiErr, tt.wantAPI, err)
			}
			if tt.wantAPI {
				if apiErr.Status != tt.status || apiErr.Provider != "anthropic" {
					t.Errorf("APIError = %+v", apiErr)
				}
				if apiErr.Retryable() != tt.retryable {
					t.Errorf("Retryable = %v, want %v", apiErr.Retryable(), tt.retryable)
				}
			}
			if tt.wantEmpty && !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("err = %v, want ErrEmptyResponse", err)
			}
		})
	}
}
