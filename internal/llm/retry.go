package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// retryBaseDelay is the first backoff step; it doubles per attempt.
var retryBaseDelay = time.Second

type retryModel struct {
	Model
	maxRetries int
}

// WithRetry wraps m so rate-limit and server errors are retried with
// exponential backoff. maxRetries <= 0 returns m unchanged.
func WithRetry(m Model, maxRetries int) Model {
	if maxRetries <= 0 {
		return m
	}
	return &retryModel{Model: m, maxRetries: maxRetries}
}

func (r *retryModel) Generate(ctx context.Context, req Request) (*Response, error) {
	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		res, err := r.Model.Generate(ctx, req)
		if err == nil {
			return res, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt >= r.maxRetries {
			return nil, err
		}

		slog.Warn("llm request failed, retrying",
			"model", r.Name(),
			"status", apiErr.Status,
			"attempt", attempt+1,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
