package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a token that failed signature or expiry
// verification. This is a transport-layer failure, distinct from the
// structural corruption authz.ErrMalformedClaims describes.
var ErrInvalidToken = errors.New("session: invalid token")

// TokenCodec signs session claims into a compact token and verifies them
// back. HS256 with a shared secret, matching the deployment's single-issuer
// setup.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(secret string, issuer string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("session: token secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("session: token ttl must be positive")
	}
	return &TokenCodec{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

type tokenClaims struct {
	SessionID string `json:"sid"`
	Session   Claims `json:"session"`
	jwt.RegisteredClaims
}

// Encode signs claims into a token bound to the given session ID.
func (c *TokenCodec) Encode(sessionID string, claims Claims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		SessionID: sessionID,
		Session:   claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.SubjectID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token and returns the session ID and claims it
// carries. Verification failures yield ErrInvalidToken.
func (c *TokenCodec) Decode(raw string) (string, Claims, error) {
	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.SessionID == "" {
		return "", Claims{}, fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}
	return parsed.SessionID, parsed.Session, nil
}
