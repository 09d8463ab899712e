package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/cache"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*cache.SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewSessionCache(client), mr
}

func testSession(principalID, device string, ttl time.Duration) domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Session{
		PrincipalID:       principalID,
		DeviceFingerprint: device,
		Verified:          true,
		IssuedAt:          now,
		ExpiresAt:         now.Add(ttl),
	}
}

func TestSessionCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	sess := testSession("principal-1", "device-a", 8*time.Hour)
	require.NoError(t, c.Put(ctx, sess))

	got, ok, err := c.Get(ctx, "principal-1", "device-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.ExpiresAt.Equal(sess.ExpiresAt))
	require.Equal(t, domain.SourceCachedFallback, got.Source)
}

func TestSessionCacheMiss(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "principal-1", "device-unknown")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCacheExpiredSessionNotStored(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-a", -time.Minute)))

	_, ok, err := c.Get(ctx, "principal-1", "device-a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-a", time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "principal-1", "device-a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCacheInvalidate(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-a", time.Hour)))
	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-b", time.Hour)))

	require.NoError(t, c.Invalidate(ctx, "principal-1", "device-a"))

	_, ok, err := c.Get(ctx, "principal-1", "device-a")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.Get(ctx, "principal-1", "device-b")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSessionCacheInvalidateAll(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-a", time.Hour)))
	require.NoError(t, c.Put(ctx, testSession("principal-1", "device-b", time.Hour)))
	require.NoError(t, c.Put(ctx, testSession("principal-2", "device-a", time.Hour)))

	require.NoError(t, c.InvalidateAll(ctx, "principal-1"))

	for _, device := range []string{"device-a", "device-b"} {
		_, ok, err := c.Get(ctx, "principal-1", device)
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, ok, err := c.Get(ctx, "principal-2", "device-a")
	require.NoError(t, err)
	require.True(t, ok)
}
