package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	revokedTokenPrefix = "auth:revoked:"
	userCutoffPrefix   = "auth:cutoff:"
)

// RedisRevoker tracks revoked bearer tokens in Redis. A token is revoked
// when its id was revoked or when it was issued before its user's cutoff.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

// Revoke marks one token id as revoked until ttl elapses.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err()
}

// RevokeIssuedBefore revokes every token of the user issued before at.
func (r *RedisRevoker) RevokeIssuedBefore(ctx context.Context, userID int, at time.Time, ttl time.Duration) error {
	return r.client.Set(ctx, userCutoffPrefix+strconv.Itoa(userID), at.Unix(), ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string, userID int, issuedAt time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	cutoff, err := r.client.Get(ctx, userCutoffPrefix+strconv.Itoa(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return issuedAt.Unix() < cutoff, nil
}

// ErrRevocationsFull is returned by MemoryRevoker when recording another
// revocation would evict one that has not expired yet.
var ErrRevocationsFull = errors.New("revocation store is full")

// MemoryRevoker is the single-process fallback used when no Redis server
// is configured. Entries expire after the token lifetime. It holds at most
// size entries of each kind and refuses new ones beyond that, so a revoked
// token never becomes valid again through eviction.
type MemoryRevoker struct {
	size int

	mu      sync.Mutex
	tokens  *expirable.LRU[string, struct{}]
	cutoffs *expirable.LRU[int, int64]
}

func NewMemoryRevoker(size int, ttl time.Duration) *MemoryRevoker {
	return &MemoryRevoker{
		size:    size,
		tokens:  expirable.NewLRU[string, struct{}](size, nil, ttl),
		cutoffs: expirable.NewLRU[int, int64](size, nil, ttl),
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tokens.Contains(tokenID) && m.tokens.Len() >= m.size {
		return ErrRevocationsFull
	}
	m.tokens.Add(tokenID, struct{}{})
	return nil
}

func (m *MemoryRevoker) RevokeIssuedBefore(_ context.Context, userID int, at time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cutoffs.Contains(userID) && m.cutoffs.Len() >= m.size {
		return ErrRevocationsFull
	}
	m.cutoffs.Add(userID, at.Unix())
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string, userID int, issuedAt time.Time) (bool, error) {
	if m.tokens.Contains(tokenID) {
		return true, nil
	}
	cutoff, ok := m.cutoffs.Get(userID)
	return ok && issuedAt.Unix() < cutoff, nil
}
