package intelligence

import "errors"

// Common errors returned by providers
var (
	// ErrCompletionFailed is returned when a completion fails for any
	// general reason.
	ErrCompletionFailed = errors.New("completion request failed")

	// ErrEmptyPrompt is returned when Complete is called with an empty prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidResponse is returned when the model response is missing
	// or malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content
	// due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)
