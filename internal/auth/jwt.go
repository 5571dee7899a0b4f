// Package auth provides session tokens, password hashing and the
// authentication middleware for the plant tracker.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User POSTs username + password to /login
//  2. AuthService verifies the bcrypt hash and writes a Session row
//  3. TokenService signs a JWT carrying the user ID ("sub") and the
//     session ID ("jti"), stored in the HttpOnly "token" cookie
//  4. On later requests RequireAuth reads the cookie, validates the JWT and
//     asks the IdentityResolver whether the session row is still alive
//  5. POST /logout deletes the row, so the token stops working immediately
//
// WHY JWT AND A SESSION ROW?
// The signature lets us reject forged or expired cookies without touching the
// database. The row is what makes sign-out real: a stateless JWT would stay
// valid until its exp claim even after the user clicked "log out".
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","jti":"<sessionID>","iss":"plantcare","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "plantcare"

// DefaultTokenTTL is used when NewTokenService is given a zero TTL.
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given HMAC secret and
// token lifetime. The secret should be at least 32 bytes of random data in
// production, e.g. PLANTCARE_AUTH_TOKEN_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long issued tokens (and the sessions behind them) live.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. Subject holds the user ID and ID (the "jti"
// claim) holds the session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for the given user and session, valid for the
// service's TTL.
func (s *TokenService) Generate(userID, sessionID string) (string, error) {
	return s.GenerateWithDuration(userID, sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID, sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID and
// session ID it carries.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer is "plantcare"
//   - Algorithm is HS256 (prevents "alg: none" confusion attacks)
func (s *TokenService) Validate(tokenStr string) (userID, sessionID string, err error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", fmt.Errorf("auth: token expired")
		}
		return "", "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", "", fmt.Errorf("auth: token has no subject")
	}
	if c.ID == "" {
		return "", "", fmt.Errorf("auth: token has no session id")
	}

	return c.Subject, c.ID, nil
}
