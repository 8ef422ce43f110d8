package driven

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateLLMService creates an LLM service from settings
	// Returns nil, nil if settings are not configured
	CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (LLMService, error)
}
