package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/datacrew/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so they are
// recorded with the run.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}
