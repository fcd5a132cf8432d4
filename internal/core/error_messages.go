package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Users quote the code; support looks it up here and checks
// the logs for the original error.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Unable to connect to the history database ("connection refused")
//	DB002 - Database connection was interrupted ("connection reset")
//	DB003 - Operation timed out ("timeout")
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File exceeds the maximum size ("file too large")
//	FILE002 - File is not a valid CSV ("invalid csv")
//	FILE003 - File is not a valid Excel workbook ("invalid xlsx")
//	FILE004 - Only .csv and .xlsx are accepted ("unsupported file type")
//	FILE005 - No file was selected ("no file provided")
//	FILE006 - The file has no header row ("empty file")
//
// # Language Model Errors (LLM001-LLM099)
//
//	LLM001 - Provider rejected the credentials ("api key", "status 401", "status 403")
//	LLM002 - Provider is rate limiting ("status 429")
//	LLM003 - Provider is unavailable ("status 500", "status 502", "status 503", "status 504")
//	LLM004 - Provider returned no text ("empty response")
//	LLM005 - Provider is not configured ("unknown provider")
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Analysis was cancelled ("analysis cancelled")
//	RUN002 - Too many analyses in progress ("too many concurrent analyses")
//	RUN003 - Run not found or expired ("run not found", "no rows in result set")
//	RUN004 - No report for this run ("report not found")
//	RUN005 - Analysis took too long ("context deadline exceeded")
//	RUN006 - Request was cancelled ("context canceled")
//	RUN007 - Cleaning step produced no data ("no cleaned data")
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests ("rate limit")
//
// # Default Error (ERR000)
//
// Returned when nothing matches. Patterns are matched case-insensitively
// with strings.Contains and the first match wins, so specific patterns come
// before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: the first pattern contained in the lowercased
// error text wins.
var errorPatterns = []errorPattern{
	// Run errors. Checked first: their texts are the most specific.
	{
		pattern: "analysis cancelled",
		msg: UserMessage{
			Message: "Analysis was cancelled",
			Action:  "Upload the file again to start a new analysis",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many concurrent analyses",
		msg: UserMessage{
			Message: "Too many analyses are in progress",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "This analysis was not found or has expired",
			Action:  "Start a new analysis",
			Code:    "RUN003",
		},
	},
	{
		pattern: "no rows in result set",
		msg: UserMessage{
			Message: "This analysis was not found or has expired",
			Action:  "Start a new analysis",
			Code:    "RUN003",
		},
	},
	{
		pattern: "report not found",
		msg: UserMessage{
			Message: "No report is available for this analysis",
			Action:  "Reports are only written for completed analyses",
			Code:    "RUN004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The analysis took too long",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "RUN006",
		},
	},
	{
		pattern: "no cleaned data",
		msg: UserMessage{
			Message: "The cleaning step has not produced data for this analysis",
			Action:  "Wait until the analysis completes, or check that the cleaning agent ran",
			Code:    "RUN007",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Upload a smaller file or split it",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check that the file is comma, semicolon or tab separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Only CSV and Excel files are supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a .csv or .xlsx file",
			Code:    "FILE005",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row and data",
			Code:    "FILE006",
		},
	},

	// Language model errors
	{
		pattern: "api key",
		msg: UserMessage{
			Message: "The language model rejected the credentials",
			Action:  "Check LLM_API_KEY",
			Code:    "LLM001",
		},
	},
	{
		pattern: "status 401",
		msg: UserMessage{
			Message: "The language model rejected the credentials",
			Action:  "Check LLM_API_KEY",
			Code:    "LLM001",
		},
	},
	{
		pattern: "status 403",
		msg: UserMessage{
			Message: "The language model rejected the credentials",
			Action:  "Check LLM_API_KEY",
			Code:    "LLM001",
		},
	},
	{
		pattern: "status 429",
		msg: UserMessage{
			Message: "The language model is rate limiting requests",
			Action:  "Please wait a minute and try again",
			Code:    "LLM002",
		},
	},
	{
		pattern: "status 500",
		msg: UserMessage{
			Message: "The language model provider is unavailable",
			Action:  "Please try again later",
			Code:    "LLM003",
		},
	},
	{
		pattern: "status 502",
		msg: UserMessage{
			Message: "The language model provider is unavailable",
			Action:  "Please try again later",
			Code:    "LLM003",
		},
	},
	{
		pattern: "status 503",
		msg: UserMessage{
			Message: "The language model provider is unavailable",
			Action:  "Please try again later",
			Code:    "LLM003",
		},
	},
	{
		pattern: "status 504",
		msg: UserMessage{
			Message: "The language model provider is unavailable",
			Action:  "Please try again later",
			Code:    "LLM003",
		},
	},
	{
		pattern: "empty response",
		msg: UserMessage{
			Message: "The language model returned no answer",
			Action:  "Please try again",
			Code:    "LLM004",
		},
	},
	{
		pattern: "unknown provider",
		msg: UserMessage{
			Message: "The language model provider is not configured",
			Action:  "Set LLM_PROVIDER to openai, openrouter or anthropic",
			Code:    "LLM005",
		},
	},

	// Database errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the history database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB003",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(errors.New("llm openai error: status 429: slow down"))
//	// msg.Code == "LLM002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
