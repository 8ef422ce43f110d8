package driving

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// AuthService handles reviewer authentication
type AuthService interface {
	// Authenticate validates credentials and issues a bearer token
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken validates a bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
