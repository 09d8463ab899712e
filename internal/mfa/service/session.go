package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/cryptox"
	"github.com/aussiebroadwan/mfagate/pkg/idx"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultSessionTTL = 8 * time.Hour

// SessionCache is the optional hot copy of issued sessions. Reads may miss or
// fail without consequence; invalidations must succeed so the fallback path
// cannot resurrect a revoked session.
type SessionCache interface {
	Put(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, bool, error)
	Invalidate(ctx context.Context, principalID, deviceFingerprint string) error
	InvalidateAll(ctx context.Context, principalID string) error
}

// SessionService manages per-device MFA sessions. The store is authoritative;
// the cache only serves reads.
type SessionService struct {
	Store store.Store
	Cache SessionCache // may be nil
	Audit audit.Recorder
	TTL   time.Duration // session lifetime, default 8h
	Now   func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

// Issue creates or refreshes the session for one (principal, device) pair and
// returns it with a signed proof token. Re-verification on an existing device
// extends the same row rather than accumulating sessions.
func (s *SessionService) Issue(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, string, error) {
	now := s.now()
	session := domain.Session{
		PrincipalID:       principalID,
		DeviceFingerprint: deviceFingerprint,
		Verified:          true,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.ttl()),
		Source:            domain.SourcePrimaryStore,
	}

	if err := s.Store.Sessions().UpsertSession(ctx, session); err != nil {
		return domain.Session{}, "", fmt.Errorf("failed to store session: %w", err)
	}

	if s.Cache != nil {
		// Best effort: a failed cache write only costs outage resilience.
		_ = s.Cache.Put(ctx, session)
	}

	token, err := s.signProofToken(session)
	if err != nil {
		return domain.Session{}, "", err
	}

	s.record(ctx, audit.KindSessionIssued, principalID, domain.OutcomeSuccess, map[string]string{
		"device_fingerprint": deviceFingerprint,
		"expires_at":         session.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return session, token, nil
}

// signProofToken mints a convenience JWT describing the session. Validity
// remains store-authoritative; the token is never accepted in place of a
// session lookup.
func (s *SessionService) signProofToken(session domain.Session) (string, error) {
	key, err := cryptox.TokenSigningKey()
	if err != nil {
		return "", fmt.Errorf("failed to load signing key: %w", err)
	}

	claims := jwt.MapClaims{
		"sub": session.PrincipalID,
		"dfp": session.DeviceFingerprint,
		"jti": uuid.NewString(),
		"iat": session.IssuedAt.Unix(),
		"exp": session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign proof token: %w", err)
	}
	return token, nil
}

// IsValid reports whether the device holds a live verified session. The cache
// answers first when available; a miss or cache error falls through to the
// store. Expired sessions are removed lazily on read.
func (s *SessionService) IsValid(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, bool, error) {
	now := s.now()

	if s.Cache != nil {
		if cached, ok, err := s.Cache.Get(ctx, principalID, deviceFingerprint); err == nil && ok && cached.Valid(now) {
			return cached, true, nil
		}
	}

	session, err := s.Store.Sessions().GetSession(ctx, principalID, deviceFingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("failed to get session: %w", err)
	}

	if !session.Valid(now) {
		if err := s.Store.Sessions().DeleteSession(ctx, principalID, deviceFingerprint); err != nil {
			return domain.Session{}, false, fmt.Errorf("failed to delete expired session: %w", err)
		}
		if s.Cache != nil {
			if err := s.Cache.Invalidate(ctx, principalID, deviceFingerprint); err != nil {
				return domain.Session{}, false, fmt.Errorf("failed to drop cached session: %w", err)
			}
		}
		return domain.Session{}, false, nil
	}
	return session, true, nil
}

// Invalidate ends the session for a single device.
func (s *SessionService) Invalidate(ctx context.Context, principalID, deviceFingerprint string) error {
	if err := s.Store.Sessions().DeleteSession(ctx, principalID, deviceFingerprint); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, principalID, deviceFingerprint); err != nil {
			return fmt.Errorf("failed to drop cached session: %w", err)
		}
	}
	s.record(ctx, audit.KindSessionsInvalidated, principalID, domain.OutcomeSuccess, map[string]string{
		"scope":              "device",
		"device_fingerprint": deviceFingerprint,
	})
	return nil
}

// InvalidateAll ends every session the principal holds, across all devices.
// Used on credential reset and compromise response.
func (s *SessionService) InvalidateAll(ctx context.Context, principalID string) error {
	if err := s.Store.Sessions().DeleteAllSessions(ctx, principalID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if s.Cache != nil {
		if err := s.Cache.InvalidateAll(ctx, principalID); err != nil {
			return fmt.Errorf("failed to drop cached sessions: %w", err)
		}
	}
	s.record(ctx, audit.KindSessionsInvalidated, principalID, domain.OutcomeSuccess, map[string]string{
		"scope": "all",
	})
	return nil
}

// Status is a display signal only ("2 of 3 devices verified"); authorization
// always goes through IsValid for one concrete device.
func (s *SessionService) Status(ctx context.Context, principalID string) (domain.SessionStatus, error) {
	sessions, err := s.Store.Sessions().ListSessions(ctx, principalID)
	if err != nil {
		return domain.SessionStatus{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := s.now()
	status := domain.SessionStatus{
		PrincipalID:  principalID,
		KnownDevices: len(sessions),
	}
	for _, session := range sessions {
		if session.Valid(now) {
			status.VerifiedDevices++
		}
	}
	return status, nil
}

func (s *SessionService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
