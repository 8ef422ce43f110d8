package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateLLMService creates an LLM service from settings.
// Unconfigured settings yield nil, nil.
func (f *Factory) CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.LLMService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAILLM(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderOllama:
		svc, err = NewOllamaLLM(settings.BaseURL, settings.Model)
	case domain.AIProviderGemini:
		svc, err = NewGeminiLLM(ctx, settings.APIKey, settings.Model, settings.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}
