package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// Store keeps the authoritative copy of each session's claims in Redis,
// keyed by session ID. The signed token carries a copy for stateless reads;
// the store is what impersonation transitions commit to.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save writes the full claim set for a session. The write is a single SET,
// so concurrent readers observe either the prior claims or the new ones,
// never a partial state.
func (s *Store) Save(ctx context.Context, sessionID string, claims Claims) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("session: marshal claims: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save claims: %w", err)
	}
	return nil
}

// Load reads the claims for a session. A missing session yields
// authz.ErrNotFound; a corrupt payload yields authz.ErrMalformedClaims.
func (s *Store) Load(ctx context.Context, sessionID string) (Claims, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Claims{}, fmt.Errorf("session %s: %w", sessionID, authz.ErrNotFound)
		}
		return Claims{}, fmt.Errorf("session: load claims: %w", err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("session %s: %v: %w", sessionID, err, authz.ErrMalformedClaims)
	}
	if err := claims.Validate(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(sessionID string) string {
	return "session:" + sessionID
}
