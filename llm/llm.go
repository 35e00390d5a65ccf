// Package llm defines the provider contracts the analysis pipeline calls and
// the helpers shared by the SDK-backed clients under llm/.
package llm

import (
	"context"
	"fmt"
)

// VisionProvider analyzes one image asset under a fixed instruction.
type VisionProvider interface {
	Describe(ctx context.Context, instruction, asset string) (string, error)
}

// TextProvider completes a text prompt.
type TextProvider interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
}

// ProviderError wraps a failed provider call.
type ProviderError struct {
	Provider string // "openai", "anthropic", "gemini"
	Op       string // "describe", "complete"
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// VisionFunc adapts a function to VisionProvider.
type VisionFunc func(ctx context.Context, instruction, asset string) (string, error)

func (f VisionFunc) Describe(ctx context.Context, instruction, asset string) (string, error) {
	return f(ctx, instruction, asset)
}

// TextFunc adapts a function to TextProvider.
type TextFunc func(ctx context.Context, instruction, input string) (string, error)

func (f TextFunc) Complete(ctx context.Context, instruction, input string) (string, error) {
	return f(ctx, instruction, input)
}
