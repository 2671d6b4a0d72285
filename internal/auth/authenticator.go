package auth

import (
	"crypto/subtle"
	"fmt"
	"time"
)

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator checks the configured admin credentials and issues tokens.
type Authenticator struct {
	username     string
	passwordHash string
	secret       string
	ttl          time.Duration
}

// NewAuthenticator creates an Authenticator for the single admin account.
func NewAuthenticator(username, passwordHash, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		username:     username,
		passwordHash: passwordHash,
		secret:       secret,
		ttl:          ttl,
	}
}

// Login verifies username and password and returns a signed access token.
// Both a wrong username and a wrong password yield ErrInvalidCredentials.
func (a *Authenticator) Login(username, password string) (*Token, error) {
	if a.passwordHash == "" {
		return nil, ErrNotConfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Hash even on a bad username so timing does not reveal which field was wrong.
	passOK, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	signed, expiresAt, err := GenerateAccessToken(a.username, a.secret, a.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify parses a bearer token issued by Login.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
