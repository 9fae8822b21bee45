// Package transcriber turns encoded audio chunks into caption results
// through one of two processing modes: a direct cloud provider with the
// user's own key, or an operator-run proxy backend. Vendor payload shapes
// are normalized here; nothing downstream sees a raw provider response.
package transcriber

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials blocks proxied mode before any network call.
	ErrMissingCredentials = errors.New("backend endpoint and secret are not configured")

	// ErrMissingAPIKey blocks direct mode before any network call.
	ErrMissingAPIKey = errors.New("API key is not configured")
)

// ProcessingError carries the server-supplied failure detail for one chunk.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return "processing failed: " + e.Reason
}

// Result is the single shape every processing mode resolves to.
type Result struct {
	Original   string
	Translated string
	Provider   string
}

// Options carries per-chunk language settings.
type Options struct {
	SourceLang      string // language code or "auto"
	TargetLang      string // empty disables translation
	IncludeOriginal bool
}

// Processor resolves one encoded chunk into a caption result.
type Processor interface {
	Name() string
	Process(ctx context.Context, audioData []byte, format string, opts Options, history []Entry) (*Result, error)
}

func apiError(provider string, status int, body []byte) error {
	return &ProcessingError{Reason: fmt.Sprintf("%s API error %d: %s", provider, status, string(body))}
}
