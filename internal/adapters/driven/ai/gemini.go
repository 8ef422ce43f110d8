package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure GeminiLLM implements LLMService
var _ driven.LLMService = (*GeminiLLM)(nil)

// GeminiLLM implements LLMService using the Google GenAI SDK
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGeminiLLM creates a Gemini completion service.
// baseURL overrides the API endpoint and is only needed for proxies and tests.
func NewGeminiLLM(ctx context.Context, apiKey, model, baseURL string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiLLM{client: client, model: model}, nil
}

// Complete generates content for a single prompt
func (l *GeminiLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return resp.Text(), nil
}

// Model returns the model name being used
func (l *GeminiLLM) Model() string {
	return l.model
}

// Ping fetches the model metadata to verify the key and model name
func (l *GeminiLLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model, nil); err != nil {
		return fmt.Errorf("gemini model %s unavailable: %w", l.model, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no closable resources
func (l *GeminiLLM) Close() error {
	return nil
}
