// Package gemini implements the intelligence.Provider interface using
// Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/davidhaber/taskengine/internal/config"
	"github.com/davidhaber/taskengine/internal/intelligence"
	"google.golang.org/genai"
)

// Provider calls the Gemini API to satisfy completion requests from
// task handlers. Retry policy lives in the task engine, not here; every
// call is a single attempt whose error the handler propagates.
type Provider struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewProvider creates a Provider from LLM configuration.
func NewProvider(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", intelligence.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", intelligence.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", intelligence.ErrInvalidConfig, err)
	}

	return &Provider{
		logger: logger.With("component", "gemini_provider"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Complete sends the prompt to the configured model and returns the
// concatenated text parts of the first candidate.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", intelligence.ErrEmptyPrompt
	}

	p.logger.DebugContext(ctx, "making Gemini API call",
		"model", p.model,
		"prompt_length", len(prompt))

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", intelligence.ErrCompletionFailed, err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}

	p.logger.DebugContext(ctx, "Gemini API call successful", "response_length", len(text))
	return text, nil
}

// extractText validates a generation response and concatenates the text
// parts of its first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", intelligence.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", intelligence.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", intelligence.ErrInvalidResponse)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: no text parts in response", intelligence.ErrInvalidResponse)
	}
	return text, nil
}
