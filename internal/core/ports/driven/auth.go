package driven

import "github.com/custodia-labs/docdesk/internal/core/domain"

// AuthAdapter verifies reviewer passwords and signs the bearer tokens
// handed out at login.
type AuthAdapter interface {
	// HashPassword produces the value stored as a reviewer's password_hash
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	GenerateToken(claims *domain.TokenClaims) (string, error)
	// ParseToken returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure
	ParseToken(token string) (*domain.TokenClaims, error)
}
