package mocks

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

const mockTokenPrefix = "mock."

// MockAuthAdapter stores reviewer passwords in clear text and encodes
// claims as unsigned JSON, so tests can configure reviewers without bcrypt.
type MockAuthAdapter struct{}

// NewMockAuthAdapter creates a MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

// HashPassword returns password unchanged
func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	return password, nil
}

// VerifyPassword reports whether the configured hash is the password itself
func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	return hash != "" && password == hash
}

// GenerateToken encodes the reviewer claims behind a fixed prefix
func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return mockTokenPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ParseToken reverses GenerateToken; anything else is ErrTokenInvalid
func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	encoded, ok := strings.CutPrefix(token, mockTokenPrefix)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return &claims, nil
}
