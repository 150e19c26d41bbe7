// Package intelligence defines the boundary between task handlers and
// external language-completion services. Handlers that need natural
// language synthesis depend on the Provider interface; the engine never
// interprets completion content.
package intelligence

import "context"

// Provider performs a synchronous completion call against an external
// language model. Implementations live under internal/platform.
type Provider interface {
	// Complete sends the prompt and returns the generated text. The
	// context carries the calling task's soft timeout; implementations
	// should respect it as advisory guidance.
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
