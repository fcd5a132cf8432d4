package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/datacrew/internal/config"
)

func TestOpenAI_Generate(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}],"usage":{"prompt_tokens":7,"completion_tokens":2,"total_tokens":9}}`))
	}))
	defer srv.Close()

	m := NewOpenAI("openai", Options{Model: "gpt-test", APIKey: "sk-test", BaseURL: srv.URL + "/", MaxTokens: 200, Temperature: 0.2})
	res, err := m.Generate(context.Background(), Request{
		System:   "be brief",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.Text != "hello" || res.FinishReason != "stop" {
		t.Errorf("response = %+v", res)
	}
	if res.Usage.TotalTokens != 9 {
		t.Errorf("usage = %+v", res.Usage)
	}
	if got.Model != "gpt-test" || got.MaxTokens != 200 || got.Temperature != 0.2 {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAI_ToolCalls(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_2","type":"function","function":{"name":"web_search","arguments":"{\"input\":\"churn\"}"}}]}}]}`))
	}))
	defer srv.Close()

	m := NewOpenAI("openrouter", Options{Model: "m", APIKey: "k", BaseURL: srv.URL})
	res, err := m.Generate(context.Background(), Request{
		Tools: []ToolSpec{{Name: "web_search", Description: "Searches the web.", Parameters: map[string]any{"type": "object"}}},
		Messages: []Message{
			{Role: RoleUser, Content: "research"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "web_search"}}},
			{Role: RoleTool, ToolResult: &ToolResult{CallID: "call_1", Name: "web_search", Content: "no results"}},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(got.Tools) != 1 || got.Tools[0].Type != "function" || got.Tools[0].Function.Name != "web_search" {
		t.Errorf("tools = %+v", got.Tools)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	call := got.Messages[1].ToolCalls
	if len(call) != 1 || call[0].ID != "call_1" || call[0].Function.Arguments != "{}" {
		t.Errorf("assistant tool_calls = %+v", call)
	}
	if got.Messages[2].Role != "tool" || got.Messages[2].ToolCallID != "call_1" || got.Messages[2].Content != "no results" {
		t.Errorf("tool message = %+v", got.Messages[2])
	}

	if res.Text != "" || len(res.ToolCalls) != 1 {
		t.Fatalf("response = %+v", res)
	}
	if tc := res.ToolCalls[0]; tc.ID != "call_2" || tc.Name != "web_search" || tc.Args["input"] != "churn" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantAPI   bool
		retryable bool
		wantEmpty bool
	}{
		{"rate limited", 429, `{"error":"slow down"}`, true, true, false},
		{"server error", 502, "bad gateway", true, true, false},
		{"unauthorized", 401, "bad key", true, false, false},
		{"no choices", 200, `{"choices":[]}`, false, false, true},
		{"blank content", 200, `{"choices":[{"message":{"content":"  "}}]}`, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m := NewOpenAI("openai", Options{Model: "m", APIKey: "k", BaseURL: srv.URL})
			_, err := m.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			if err == nil {
				t.Fatal("expected error")
			}

			var apiErr *APIError
			if errors.As(err, &apiErr) != tt.wantAPI {
				t.Fatalf("APIError = %v, want %v (err %v)", apiErr, tt.wantAPI, err)
			}
			if tt.wantAPI && apiErr.Retryable() != tt.retryable {
				t.Errorf("Retryable = %v, want %v", apiErr.Retryable(), tt.retryable)
			}
			if tt.wantEmpty && !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("err = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

type flakyModel struct {
	calls    atomic.Int32
	failures int32
	status   int
}

func (f *flakyModel) Name() string { return "flaky" }

func (f *flakyModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if n := f.calls.Add(1); n <= f.failures {
		return nil, &APIError{Provider: "test", Status: f.status}
	}
	return &Response{Text: "ok"}, nil
}

func TestWithRetry(t *testing.T) {
	prev := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = prev }()

	tests := []struct {
		name      string
		failures  int32
		status    int
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"succeeds after retries", 2, 429, 3, false, 3},
		{"gives up", 5, 503, 2, true, 3},
		{"no retry on client error", 1, 400, 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &flakyModel{failures: tt.failures, status: tt.status}
			m := WithRetry(f, tt.retries)

			res, err := m.Generate(context.Background(), Request{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && res.Text != "ok" {
				t.Errorf("text = %q", res.Text)
			}
			if got := f.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	prev := retryBaseDelay
	retryBaseDelay = time.Hour
	defer func() { retryBaseDelay = prev }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	m := WithRetry(&flakyModel{failures: 10, status: 429}, 5)
	if _, err := m.Generate(ctx, Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
		wantErr  string
	}{
		{"openai", config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, "openai/gpt-4o-mini", ""},
		{"openrouter", config.LLMConfig{Provider: "OpenRouter", Model: "x/y", APIKey: "k", MaxRetries: 2}, "openrouter/x/y", ""},
		{"anthropic", config.LLMConfig{Provider: "anthropic", Model: "claude", APIKey: "k"}, "anthropic/claude", ""},
		{"missing key", config.LLMConfig{Provider: "openai", Model: "m"}, "", "api key"},
		{"unknown provider", config.LLMConfig{Provider: "bogus", Model: "m", APIKey: "k"}, "", "unknown provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if m.Name() != tt.wantName {
				t.Errorf("Name = %q, want %q", m.Name(), tt.wantName)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	if u != (Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}) {
		t.Errorf("Usage = %+v", u)
	}
}
