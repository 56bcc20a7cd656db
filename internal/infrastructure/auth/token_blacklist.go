package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist answers revocation questions about a validated token.
// Revocations are written by the identity service on logout or forced
// sign-out; this service only reads them.
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	// IsUserTokenInvalidated reports whether issuedAt is at or before the
	// user's last forced sign-out.
	IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// DefaultBlacklistKeyPrefix is shared with the identity service
const DefaultBlacklistKeyPrefix = "token:blacklist:"

// RedisTokenBlacklist reads the identity service's revocation keys:
//
//	<prefix>jti:<jti>      present while the token is revoked
//	<prefix>user:<userID>  unix seconds of the last forced sign-out
type RedisTokenBlacklist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenBlacklist creates a reader on an existing client. An empty
// prefix selects DefaultBlacklistKeyPrefix.
func NewRedisTokenBlacklist(client redis.UniversalClient, prefix string) *RedisTokenBlacklist {
	if prefix == "" {
		prefix = DefaultBlacklistKeyPrefix
	}
	return &RedisTokenBlacklist{client: client, prefix: prefix}
}

// JTIKey is the key whose presence revokes jti
func (b *RedisTokenBlacklist) JTIKey(jti string) string {
	return b.prefix + "jti:" + jti
}

// SignOutKey is the key holding the user's last forced sign-out
func (b *RedisTokenBlacklist) SignOutKey(userID string) string {
	return b.prefix + "user:" + userID
}

func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.JTIKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (b *RedisTokenBlacklist) IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, b.SignOutKey(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check user sign-out: %w", err)
	}
	signedOut, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("malformed sign-out timestamp %q: %w", raw, err)
	}
	return issuedAt.Unix() <= signedOut, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist is a single-process TokenBlacklist for tests and
// local runs without Redis.
type InMemoryTokenBlacklist struct {
	mu        sync.Mutex
	revoked   map[string]time.Time // jti -> expiry
	signedOut map[string]time.Time
}

func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		revoked:   make(map[string]time.Time),
		signedOut: make(map[string]time.Time),
	}
}

// Revoke blacklists jti for ttl
func (b *InMemoryTokenBlacklist) Revoke(jti string, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = time.Now().Add(ttl)
}

// SignOut invalidates every token the user was issued up to at
func (b *InMemoryTokenBlacklist) SignOut(userID string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signedOut[userID] = at
}

func (b *InMemoryTokenBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (b *InMemoryTokenBlacklist) IsUserTokenInvalidated(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at, ok := b.signedOut[userID]
	return ok && !issuedAt.After(at), nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
