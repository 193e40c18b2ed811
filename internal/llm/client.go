// Package llm wraps the text-generation collaborator. Both the reflection
// proxy and the weekly analysis job make exactly one call per invocation; no
// retries happen at this layer.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrAuth indicates the upstream rejected our credentials. This is a
	// deployment configuration problem, not a caller mistake.
	ErrAuth = errors.New("text generation authentication failed")
	// ErrRateLimited indicates the upstream throttled the request. Callers
	// may retry after a delay; this package never does.
	ErrRateLimited = errors.New("text generation rate limited")
	// ErrUpstream covers any other upstream failure, including responses
	// with no text content.
	ErrUpstream = errors.New("text generation failed")
)

// Client defines the interface contract for text-generation services.
type Client interface {
	// Complete sends one system+user exchange and returns the generated
	// text verbatim, bounded by maxTokens.
	Complete(ctx context.Context, system, user string, maxTokens int64) (string, error)
	ModelName() string
}
