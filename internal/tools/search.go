// Package tools implements the tools available to analysis agents.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/datacrew/internal/config"
)

// DefaultSearchURL is the Serper.dev search endpoint.
const DefaultSearchURL = "https://google.serper.dev/search"

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type organicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type answerBox struct {
	Title   string `json:"title"`
	Answer  string `json:"answer"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	AnswerBox *answerBox      `json:"answerBox,omitempty"`
	Organic   []organicResult `json:"organic"`
}

// SearchTool queries the web through Serper.dev.
type SearchTool struct {
	apiKey  string
	url     string
	results int
	client  *http.Client
}

// NewSearchTool creates a search tool from configuration.
func NewSearchTool(cfg config.SearchConfig) *SearchTool {
	url := cfg.URL
	if url == "" {
		url = DefaultSearchURL
	}
	results := cfg.Results
	if results <= 0 {
		results = 5
	}
	return &SearchTool{
		apiKey:  cfg.APIKey,
		url:     url,
		results: results,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the internet. Input is a search query; returns the top results with title, link and snippet."
}

// Run performs a search. A missing API key is reported to the agent as an
// observation rather than failing the task.
func (t *SearchTool) Run(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "The search query was empty. Provide a query as Action Input.", nil
	}
	if t.apiKey == "" {
		return "Web search is not configured (no SERPER_API_KEY). Continue without search results.", nil
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(searchRequest{Q: query, Num: t.results}); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-KEY", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("search failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	return formatResults(sr, t.results), nil
}

func formatResults(sr searchResponse, limit int) string {
	var b strings.Builder
	if ab := sr.AnswerBox; ab != nil && (ab.Answer != "" || ab.Snippet != "") {
		answer := ab.Answer
		if answer == "" {
			answer = ab.Snippet
		}
		fmt.Fprintf(&b, "Answer: %s\n\n", answer)
	}

	if len(sr.Organic) == 0 {
		if b.Len() == 0 {
			return "No results found."
		}
		return strings.TrimSpace(b.String())
	}

	for i, r := range sr.Organic {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "Title: %s\nLink: %s\nSnippet: %s\n---\n", r.Title, r.Link, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}
