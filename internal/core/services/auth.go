package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService authenticates configured reviewers with stateless bearer tokens
type authService struct {
	reviewers   map[string]domain.Reviewer
	authAdapter driven.AuthAdapter
	tokenTTL    time.Duration
}

// NewAuthService creates a new AuthService over a fixed reviewer list
func NewAuthService(reviewers []domain.Reviewer, authAdapter driven.AuthAdapter, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	byEmail := make(map[string]domain.Reviewer, len(reviewers))
	for _, r := range reviewers {
		byEmail[strings.ToLower(r.Email)] = r
	}
	return &authService{
		reviewers:   byEmail,
		authAdapter: authAdapter,
		tokenTTL:    tokenTTL,
	}
}

// Authenticate validates credentials and issues a token
func (s *authService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	reviewer, ok := s.reviewers[strings.ToLower(req.Email)]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !s.authAdapter.VerifyPassword(req.Password, reviewer.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &domain.TokenClaims{
		Email:     reviewer.Email,
		Name:      reviewer.Name,
		Role:      reviewer.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Reviewer: &domain.AuthContext{
			Email: reviewer.Email,
			Name:  reviewer.Name,
			Role:  reviewer.Role,
		},
	}, nil
}

// ValidateToken validates a token and returns the auth context.
// Reviewers removed from configuration lose access immediately.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	reviewer, ok := s.reviewers[strings.ToLower(claims.Email)]
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	return &domain.AuthContext{
		Email: reviewer.Email,
		Name:  reviewer.Name,
		Role:  reviewer.Role,
	}, nil
}
