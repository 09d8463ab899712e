package audit

import (
	"context"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
)

// StoreRecorder appends events to the primary store's audit table. This is
// the durable trail; queue-based recorders are additive on top of it.
type StoreRecorder struct {
	store store.Store
}

func NewStoreRecorder(s store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	return r.store.AuditEvents().AppendAuditEvent(ctx, event)
}
