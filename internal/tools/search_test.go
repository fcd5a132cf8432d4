package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/datacrew/internal/config"
)

func TestSearchTool_Run(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if key := r.Header.Get("X-API-KEY"); key != "serper-key" {
			t.Errorf("X-API-KEY = %q", key)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{
			"answerBox": {"answer": "about 42"},
			"organic": [
				{"title": "One", "link": "https://a.example", "snippet": "first", "position": 1},
				{"title": "Two", "link": "https://b.example", "snippet": "second", "position": 2},
				{"title": "Three", "link": "https://c.example", "snippet": "third", "position": 3}
			]
		}`))
	}))
	defer srv.Close()

	tool := NewSearchTool(config.SearchConfig{APIKey: "serper-key", URL: srv.URL, Results: 2})
	out, err := tool.Run(context.Background(), "  churn benchmarks  ")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Q != "churn benchmarks" || got.Num != 2 {
		t.Errorf("request = %+v", got)
	}
	for _, want := range []string{"Answer: about 42", "Title: One", "Link: https://b.example"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Three") {
		t.Errorf("output should be limited to 2 results:\n%s", out)
	}
}

func TestSearchTool_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		input string
		want  string
	}{
		{"no api key", "", "query", "not configured"},
		{"empty query", "k", "   ", "query was empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewSearchTool(config.SearchConfig{APIKey: tt.key})
			out, err := tool.Run(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("out = %q, want containing %q", out, tt.want)
			}
		})
	}
}

func TestSearchTool_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	tool := NewSearchTool(config.SearchConfig{APIKey: "k", URL: srv.URL})
	_, err := tool.Run(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Errorf("err = %v, want status 403", err)
	}
}

func TestFormatResults_Empty(t *testing.T) {
	if got := formatResults(searchResponse{}, 5); got != "No results found." {
		t.Errorf("got %q", got)
	}
}
