// Package cache keeps a Redis copy of issued MFA sessions. The primary store
// stays authoritative; the cache serves reads when the store is unreachable
// so already-verified devices keep working through a database outage.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "mfa:session:"
	deviceSetPrefix  = "mfa:devices:"
)

type SessionCache struct {
	Client *redis.Client
	Now    func() time.Time
}

func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{
		Client: client,
		Now:    time.Now,
	}
}

func sessionKey(principalID, deviceFingerprint string) string {
	return sessionKeyPrefix + principalID + ":" + deviceFingerprint
}

func deviceSetKey(principalID string) string {
	return deviceSetPrefix + principalID
}

// Put stores the session with a TTL matching its remaining lifetime, and
// tracks the device in a per-principal set so InvalidateAll can find every
// key without scanning.
func (c *SessionCache) Put(ctx context.Context, s domain.Session) error {
	ttl := s.ExpiresAt.Sub(c.Now())
	if ttl <= 0 {
		return nil
	}

	body, err := json.Marshal(s)
	if err != nil {
		return err
	}

	pipe := c.Client.TxPipeline()
	pipe.Set(ctx, sessionKey(s.PrincipalID, s.DeviceFingerprint), body, ttl)
	pipe.SAdd(ctx, deviceSetKey(s.PrincipalID), s.DeviceFingerprint)
	pipe.Expire(ctx, deviceSetKey(s.PrincipalID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the cached session, marked as coming from the fallback path.
// The second return is false on a miss.
func (c *SessionCache) Get(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, bool, error) {
	body, err := c.Client.Get(ctx, sessionKey(principalID, deviceFingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}

	var s domain.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return domain.Session{}, false, err
	}
	s.Source = domain.SourceCachedFallback
	return s, true, nil
}

func (c *SessionCache) Invalidate(ctx context.Context, principalID, deviceFingerprint string) error {
	pipe := c.Client.TxPipeline()
	pipe.Del(ctx, sessionKey(principalID, deviceFingerprint))
	pipe.SRem(ctx, deviceSetKey(principalID), deviceFingerprint)
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateAll drops every cached session for the principal. Called on
// credential reset and bulk session invalidation so the fallback path cannot
// resurrect revoked sessions.
func (c *SessionCache) InvalidateAll(ctx context.Context, principalID string) error {
	devices, err := c.Client.SMembers(ctx, deviceSetKey(principalID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(devices)+1)
	for _, d := range devices {
		keys = append(keys, sessionKey(principalID, d))
	}
	keys = append(keys, deviceSetKey(principalID))
	return c.Client.Del(ctx, keys...).Err()
}

func (c *SessionCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *SessionCache) Close() error {
	return c.Client.Close()
}
