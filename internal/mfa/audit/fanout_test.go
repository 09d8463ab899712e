package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"

	"github.com/stretchr/testify/require"
)

type recorderFunc func(ctx context.Context, event domain.AuditEvent) error

func (f recorderFunc) Record(ctx context.Context, event domain.AuditEvent) error {
	return f(ctx, event)
}

func TestFanoutDeliversToAllRecorders(t *testing.T) {
	t.Parallel()

	var primary, secondary []string
	fanout := audit.NewFanout(slog.Default(),
		recorderFunc(func(_ context.Context, e domain.AuditEvent) error {
			primary = append(primary, e.Kind)
			return nil
		}),
		recorderFunc(func(_ context.Context, e domain.AuditEvent) error {
			secondary = append(secondary, e.Kind)
			return nil
		}),
	)

	err := fanout.Record(context.Background(), domain.AuditEvent{
		ID:          "evt-1",
		Kind:        audit.KindVerifySuccess,
		PrincipalID: "principal-1",
		Outcome:     domain.OutcomeSuccess,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, []string{audit.KindVerifySuccess}, primary)
	require.Equal(t, []string{audit.KindVerifySuccess}, secondary)
}

func TestFanoutPrimaryErrorPropagates(t *testing.T) {
	t.Parallel()

	errDown := errors.New("store down")
	fanout := audit.NewFanout(slog.Default(),
		recorderFunc(func(context.Context, domain.AuditEvent) error { return errDown }),
		recorderFunc(func(context.Context, domain.AuditEvent) error { return nil }),
	)

	err := fanout.Record(context.Background(), domain.AuditEvent{Kind: audit.KindVerifyFailure})
	require.ErrorIs(t, err, errDown)
}

func TestFanoutSecondaryErrorSwallowed(t *testing.T) {
	t.Parallel()

	fanout := audit.NewFanout(slog.Default(),
		recorderFunc(func(context.Context, domain.AuditEvent) error { return nil }),
		recorderFunc(func(context.Context, domain.AuditEvent) error { return errors.New("broker down") }),
	)

	err := fanout.Record(context.Background(), domain.AuditEvent{Kind: audit.KindBypassUsed})
	require.NoError(t, err)
}
