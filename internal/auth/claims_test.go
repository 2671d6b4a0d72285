package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestGenerateAndParseToken(t *testing.T) {
	token, expiresAt, err := GenerateAccessToken("admin", testSecret, 10*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if until := time.Until(expiresAt); until < 9*time.Minute || until > 10*time.Minute {
		t.Errorf("expiresAt = %v, want ~10m from now", expiresAt)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Subject = %q, want admin", claims.Subject)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.ID == "" {
		t.Error("token should carry a jti")
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	_, expiresAt, err := GenerateAccessToken("admin", testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if until := time.Until(expiresAt); until > defaultTTL || until < defaultTTL-time.Minute {
		t.Errorf("default TTL not applied: expires in %v", until)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, _, err := GenerateAccessToken("admin", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	expired := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleAdmin,
	}, jwt.SigningMethodHS256)

	wrongRole := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		Role:             "viewer",
	}, jwt.SigningMethodHS256)

	noSubject := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		Role:             RoleAdmin,
	}, jwt.SigningMethodHS256)

	hs512 := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		Role:             RoleAdmin,
	}, jwt.SigningMethodHS512)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "another-secret-key-at-least-32-chars"},
		{"garbage", "not.a.jwt", testSecret},
		{"expired", expired, testSecret},
		{"wrong role", wrongRole, testSecret},
		{"missing subject", noSubject, testSecret},
		{"unexpected algorithm", hs512, testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token, tt.secret)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func signClaims(t *testing.T, claims Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}
