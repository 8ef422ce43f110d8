package domain

import "time"

// Role defines reviewer permission level
type Role string

const (
	RoleAdmin    Role = "admin"    // Trigger pipeline runs
	RoleReviewer Role = "reviewer" // Review, approve and send responses
)

// Reviewer is a person allowed to approve and send responses
type Reviewer struct {
	Email        string `json:"email" yaml:"email"`
	Name         string `json:"name" yaml:"name"`
	PasswordHash string `json:"-" yaml:"password_hash"`
	Role         Role   `json:"role" yaml:"role"`
}

// AuthContext contains authenticated reviewer info for request context
type AuthContext struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// IsAdmin checks if the authenticated reviewer is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Reviewer  *AuthContext `json:"reviewer"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
