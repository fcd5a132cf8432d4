package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/datacrew/internal/dataset"
	"github.com/JonMunkholm/datacrew/internal/llm"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"empty upload", dataset.ErrEmptyFile, "FILE006"},
		{"unsupported type", dataset.ErrUnsupportedFormat, "FILE004"},
		{"malformed csv", &dataset.ParseError{Format: dataset.FormatCSV, Line: 3, Err: errors.New("bare quote")}, "FILE002"},
		{"malformed xlsx", &dataset.ParseError{Format: dataset.FormatXLSX, Err: errors.New("zip: not a valid zip file")}, "FILE003"},
		{"too large", ErrFileTooLarge, "FILE001"},
		{"no file", ErrNoFile, "FILE005"},
		{"rate limited provider", &llm.APIError{Provider: "openai", Status: 429, Body: "slow down"}, "LLM002"},
		{"bad key", &llm.APIError{Provider: "openai", Status: 401}, "LLM001"},
		{"provider down", fmt.Errorf("task 1 (Reporter): %w", &llm.APIError{Provider: "anthropic", Status: 503}), "LLM003"},
		{"empty completion", llm.ErrEmptyResponse, "LLM004"},
		{"busy", ErrTooManyRuns, "RUN002"},
		{"unknown run", ErrRunNotFound, "RUN003"},
		{"no report", ErrReportNotFound, "RUN004"},
		{"kickoff timeout", fmt.Errorf("task 2: %w", context.DeadlineExceeded), "RUN005"},
		{"cancelled request", context.Canceled, "RUN006"},
		{"user cancel", ErrRunCancelled, "RUN001"},
		{"db down", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB001"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("CONNECTION RESET by peer"), "DB002"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(dataset.ErrUnsupportedFormat)
	want := "Only CSV and Excel files are supported (Code: FILE004). Upload a .csv or .xlsx file"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrTooManyRuns, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
