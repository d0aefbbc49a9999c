package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestRedisRevoker(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked token id", func(t *testing.T) {
		mr, client := newTestClient(t)
		revoker := NewRedisRevoker(client)
		issued := time.Now()

		revoked, err := revoker.IsRevoked(ctx, "jti-1", 7, issued)
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Hour))
		revoked, err = revoker.IsRevoked(ctx, "jti-1", 7, issued)
		require.NoError(t, err)
		assert.True(t, revoked)

		mr.FastForward(2 * time.Hour)
		revoked, err = revoker.IsRevoked(ctx, "jti-1", 7, issued)
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("tokens issued before cutoff", func(t *testing.T) {
		_, client := newTestClient(t)
		revoker := NewRedisRevoker(client)
		cutoff := time.Unix(1_700_000_000, 0)

		require.NoError(t, revoker.RevokeIssuedBefore(ctx, 7, cutoff, time.Hour))

		revoked, err := revoker.IsRevoked(ctx, "old", 7, cutoff.Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = revoker.IsRevoked(ctx, "new", 7, cutoff)
		require.NoError(t, err)
		assert.False(t, revoked)

		revoked, err = revoker.IsRevoked(ctx, "other-user", 8, cutoff.Add(-time.Minute))
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	revoker := NewMemoryRevoker(16, time.Hour)
	cutoff := time.Unix(1_700_000_000, 0)

	require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Hour))
	require.NoError(t, revoker.RevokeIssuedBefore(ctx, 3, cutoff, time.Hour))

	revoked, _ := revoker.IsRevoked(ctx, "jti-1", 1, cutoff)
	assert.True(t, revoked)
	revoked, _ = revoker.IsRevoked(ctx, "jti-2", 3, cutoff.Add(-time.Second))
	assert.True(t, revoked)
	revoked, _ = revoker.IsRevoked(ctx, "jti-3", 3, cutoff)
	assert.False(t, revoked)
}

func TestMemoryRevokerRefusesPastCapacity(t *testing.T) {
	ctx := context.Background()
	revoker := NewMemoryRevoker(2, time.Hour)
	issued := time.Unix(1_700_000_000, 0)

	require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Hour))
	require.NoError(t, revoker.Revoke(ctx, "jti-2", time.Hour))
	assert.ErrorIs(t, revoker.Revoke(ctx, "jti-3", time.Hour), ErrRevocationsFull)
	require.NoError(t, revoker.Revoke(ctx, "jti-1", time.Hour))

	for _, id := range []string{"jti-1", "jti-2"} {
		revoked, err := revoker.IsRevoked(ctx, id, 1, issued)
		require.NoError(t, err)
		assert.True(t, revoked, id)
	}

	require.NoError(t, revoker.RevokeIssuedBefore(ctx, 1, issued, time.Hour))
	require.NoError(t, revoker.RevokeIssuedBefore(ctx, 2, issued, time.Hour))
	assert.ErrorIs(t, revoker.RevokeIssuedBefore(ctx, 3, issued, time.Hour), ErrRevocationsFull)
	require.NoError(t, revoker.RevokeIssuedBefore(ctx, 1, issued.Add(time.Minute), time.Hour))

	revoked, err := revoker.IsRevoked(ctx, "jti-9", 1, issued)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestStatsCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	stats := NewStatsCache(client)

	_, ok, err := stats.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, stats.Set(ctx, "dashboard", []byte(`{"total":3}`), time.Minute))
	value, ok, err := stats.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":3}`, string(value))

	mr.FastForward(2 * time.Minute)
	_, ok, err = stats.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("stats:dashboard"))
}
