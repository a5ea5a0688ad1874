package utils // package utils provides helpers for issuing and verifying access tokens

import (
	"errors" // sentinel error for rejected tokens
	"time"   // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// subject checks.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Clients send it in the websocket auth frame or in the
// Authorization header of the catch-up API.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT whose subject is userID.
// The token carries the standard sub, exp and iat claims.
func NewAccessToken(secret, userID string, ttl time.Duration) (AccessToken, error) {
	// Calculate the expiration time by adding the TTL to the current UTC time.
	now := time.Now().UTC()
	exp := now.Add(ttl)
	// Registered claims keep sub and exp typed, so parsing needs no map
	// assertions.
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	// Sign the token with the provided secret and obtain the string form.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns its subject.  Only
// HMAC-signed tokens are accepted.
func ParseAccessToken(secret, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		// Type assert the signing method to HMAC; reject others.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		// Return the secret bytes used to sign the token.
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	// If parsing failed or the token is invalid, report a single error so
	// callers cannot tell which check failed.
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	// A token without a subject names nobody.
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
