package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

func reviewerClaimsAt(now time.Time, ttl time.Duration, role domain.Role) *domain.TokenClaims {
	return &domain.TokenClaims{
		Email:     "anna@example.com",
		Name:      "Anna",
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestNewAdapterWithCost(t *testing.T) {
	adapter := NewAdapterWithCost("test-secret", 4)
	if adapter.bcryptCost != 4 {
		t.Errorf("expected bcrypt cost 4, got %d", adapter.bcryptCost)
	}
}

func TestHashPassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4) // Low cost for faster tests

	hash, err := adapter.HashPassword("mypassword")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "mypassword" {
		t.Error("hash should not equal plaintext password")
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("expected bcrypt hash with cost 4, got %q", hash)
	}
}

func TestHashPassword_Empty(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)

	if _, err := adapter.HashPassword(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)

	hash1, _ := adapter.HashPassword("password123")
	hash2, _ := adapter.HashPassword("password123")

	if hash1 == hash2 {
		t.Error("expected different hashes for same password (due to salt)")
	}
}

func TestVerifyPassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)
	hash, _ := adapter.HashPassword("correctpassword")

	if !adapter.VerifyPassword("correctpassword", hash) {
		t.Error("expected password verification to succeed")
	}
	if adapter.VerifyPassword("wrongpassword", hash) {
		t.Error("expected password verification to fail for wrong password")
	}
	if adapter.VerifyPassword("password", "not-a-valid-hash") {
		t.Error("expected verification to fail for invalid hash")
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleReviewer} {
		t.Run(string(role), func(t *testing.T) {
			original := reviewerClaimsAt(time.Now(), 24*time.Hour, role)

			token, err := adapter.GenerateToken(original)
			if err != nil {
				t.Fatalf("failed to generate token: %v", err)
			}
			if strings.Count(token, ".") != 2 {
				t.Errorf("expected three JWT segments, got %q", token)
			}

			parsed, err := adapter.ParseToken(token)
			if err != nil {
				t.Fatalf("failed to parse token: %v", err)
			}
			if *parsed != *original {
				t.Errorf("parsed %+v, want %+v", parsed, original)
			}
		})
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	token, _ := adapter.GenerateToken(reviewerClaimsAt(time.Now().Add(-26*time.Hour), 24*time.Hour, domain.RoleReviewer))

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-1").GenerateToken(reviewerClaimsAt(time.Now(), time.Hour, domain.RoleReviewer))

	if _, err := NewAdapter("secret-2").ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_ForeignIssuer(t *testing.T) {
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "someone-else",
		"email": "anna@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token, err := foreign.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewAdapter("test-secret").ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_NoneAlgorithmRejected(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss":   Issuer,
		"email": "anna@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewAdapter("test-secret").ParseToken(token); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}

func TestParseToken_MalformedToken(t *testing.T) {
	adapter := NewAdapter("test-secret")

	for _, tc := range []string{"", "not-a-jwt", "only.two.parts.missing", "header.payload", "invalid.token.here"} {
		if _, err := adapter.ParseToken(tc); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid for %q, got %v", tc, err)
		}
	}
}

func BenchmarkParseToken(b *testing.B) {
	adapter := NewAdapter("test-secret")
	token, _ := adapter.GenerateToken(reviewerClaimsAt(time.Now(), time.Hour, domain.RoleReviewer))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ParseToken(token)
	}
}
